package pipeline

import (
	"errors"
	"testing"
)

const validYAML = `
name: orders-etl
description: nightly order sync
nodes:
  - id: extract
    type: input
    name: Extract orders
  - id: clean
    type: transform
  - id: load
    type: output
edges:
  - from: extract
    to: clean
  - from: clean
    to: load
`

func TestParseAndValidate(t *testing.T) {
	def, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if def.Name != "orders-etl" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Nodes) != 3 || len(def.Edges) != 2 {
		t.Errorf("got %d nodes, %d edges", len(def.Nodes), len(def.Edges))
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{
			name:    "no nodes",
			def:     Definition{Name: "empty"},
			wantErr: ErrEmptyDefinition,
		},
		{
			name: "duplicate node id",
			def: Definition{
				Name: "dup",
				Nodes: []Node{
					{ID: "a", Type: "input"},
					{ID: "a", Type: "output"},
				},
			},
			wantErr: ErrDuplicateNode,
		},
		{
			name: "edge to unknown node",
			def: Definition{
				Name:  "dangling",
				Nodes: []Node{{ID: "a", Type: "input"}},
				Edges: []Edge{{From: "a", To: "ghost"}},
			},
			wantErr: ErrUnknownNode,
		},
		{
			name: "two node cycle",
			def: Definition{
				Name: "loop",
				Nodes: []Node{
					{ID: "a", Type: "transform"},
					{ID: "b", Type: "transform"},
				},
				Edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
			},
			wantErr: ErrCycle,
		},
		{
			name: "self loop",
			def: Definition{
				Name:  "self",
				Nodes: []Node{{ID: "a", Type: "transform"}},
				Edges: []Edge{{From: "a", To: "a"}},
			},
			wantErr: ErrCycle,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateUnknownNodeType(t *testing.T) {
	def := Definition{
		Name:  "bad-type",
		Nodes: []Node{{ID: "a", Type: "webscrape"}},
	}
	if err := def.Validate(); err == nil {
		t.Error("expected error for unknown node type")
	}
}

func TestToWorkflow(t *testing.T) {
	def, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	workflow := def.ToWorkflow("wf-1", "user-1")
	if workflow.ID != "wf-1" || workflow.OwnerID != "user-1" {
		t.Errorf("identity not carried: %+v", workflow)
	}
	if len(workflow.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(workflow.Nodes))
	}
	if workflow.Nodes[0].Name != "Extract orders" {
		t.Errorf("node name = %q", workflow.Nodes[0].Name)
	}
	if workflow.Edges[1].From != "clean" || workflow.Edges[1].To != "load" {
		t.Errorf("edge = %+v", workflow.Edges[1])
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	def, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	data, err := def.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.Name != def.Name || len(again.Nodes) != len(def.Nodes) || len(again.Edges) != len(def.Edges) {
		t.Errorf("round trip changed definition: %+v vs %+v", again, def)
	}
}
