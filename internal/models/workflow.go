// Package models defines the core domain models for the console.
package models

import "time"

// NodeType identifies the engine step kind a workflow node maps to.
type NodeType string

const (
	NodeTypeInput     NodeType = "input"
	NodeTypeTransform NodeType = "transform"
	NodeTypeOutput    NodeType = "output"
	NodeTypeCDCSource NodeType = "cdc-source"
	NodeTypeCDCSink   NodeType = "cdc-sink"
)

// WorkflowNode is a single step in a workflow DAG.
type WorkflowNode struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Name string   `json:"name"`
}

// Edge connects two nodes in a workflow DAG.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Workflow represents a data-integration workflow definition.
type Workflow struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []WorkflowNode `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Node returns the node with the given ID, or nil if absent.
func (w *Workflow) Node(id string) *WorkflowNode {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// IsTerminal reports whether the status is a terminal state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

// TriggerType indicates how a run was started.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
)

// WorkflowRun represents a single execution of a workflow by the engines.
type WorkflowRun struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflow_id"`
	Status     RunStatus   `json:"status"`
	Trigger    TriggerType `json:"trigger"`
	// NodeIDs is the set of node IDs the engine reported executing.
	NodeIDs    []string   `json:"node_ids,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
