package logs

import (
	"sync"

	"github.com/flowdeck/console/internal/models"
)

// Tail keeps a bounded recent-entry buffer per workflow run so that new
// stream subscribers can be primed without a database round trip.
type Tail struct {
	mu       sync.Mutex
	runs     map[string]*Container
	maxLines int
}

// NewTail creates a tail registry whose per-run buffers hold maxLines entries.
func NewTail(maxLines int) *Tail {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Tail{
		runs:     make(map[string]*Container),
		maxLines: maxLines,
	}
}

// Append records an entry in its run's buffer.
func (t *Tail) Append(entry *models.LogEntry) {
	if entry == nil || entry.RunID == "" {
		return
	}
	t.container(entry.RunID).Add(entry)
}

// AppendBatch records a batch of entries.
func (t *Tail) AppendBatch(entries []*models.LogEntry) {
	for _, entry := range entries {
		t.Append(entry)
	}
}

// Recent returns up to n recent entries for a run, oldest first.
func (t *Tail) Recent(runID string, n int) []*models.LogEntry {
	t.mu.Lock()
	c, ok := t.runs[runID]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return c.GetLast(n)
}

// Drop releases the buffer for a finished run.
func (t *Tail) Drop(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}

func (t *Tail) container(runID string) *Container {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.runs[runID]
	if !ok {
		c = NewContainer(t.maxLines)
		t.runs[runID] = c
	}
	return c
}
