package cdc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowdeck/console/internal/engines"
)

func TestCreateSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/syncs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Sync{
			ID:       "sync-1",
			SourceID: req.SourceID,
			TargetID: req.TargetID,
			Mode:     req.Mode,
			Status:   "running",
		})
	}))
	defer srv.Close()

	client := NewClient(engines.Config{BaseURL: srv.URL})

	sync, err := client.CreateSync(context.Background(), &SyncRequest{
		SourceID: "src-1",
		TargetID: "tgt-1",
		Mode:     "incremental",
	})
	if err != nil {
		t.Fatalf("CreateSync: %v", err)
	}
	if sync.ID != "sync-1" || sync.Mode != "incremental" {
		t.Errorf("unexpected sync: %+v", sync)
	}
}

func TestListSyncs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"syncs": []Sync{
				{ID: "sync-1", Status: "running"},
				{ID: "sync-2", Status: "succeeded"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(engines.Config{BaseURL: srv.URL})

	syncs, err := client.ListSyncs(context.Background())
	if err != nil {
		t.Fatalf("ListSyncs: %v", err)
	}
	if len(syncs) != 2 {
		t.Fatalf("got %d syncs, want 2", len(syncs))
	}
	if syncs[1].Status != "succeeded" {
		t.Errorf("second sync status = %q", syncs[1].Status)
	}
}

func TestSyncStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such sync", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(engines.Config{BaseURL: srv.URL})

	_, err := client.SyncStatus(context.Background(), "missing")
	if !engines.IsUpstream(err) {
		t.Fatalf("error %v is not an upstream error", err)
	}
	if err.(*engines.Error).StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", err.(*engines.Error).StatusCode)
	}
}
