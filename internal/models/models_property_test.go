package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: console, Property: Model JSON round-trip**
// For any valid Workflow, WorkflowRun, or LogEntry, serializing to JSON
// and deserializing should produce an equivalent model.

// genLevel generates a random Level.
func genLevel() gopter.Gen {
	return gen.OneConstOf(LevelInfo, LevelWarning, LevelError)
}

// genRunStatus generates a random RunStatus.
func genRunStatus() gopter.Gen {
	return gen.OneConstOf(
		RunStatusPending,
		RunStatusRunning,
		RunStatusSucceeded,
		RunStatusFailed,
		RunStatusCanceled,
	)
}

// genNodeType generates a random NodeType.
func genNodeType() gopter.Gen {
	return gen.OneConstOf(
		NodeTypeInput,
		NodeTypeTransform,
		NodeTypeOutput,
		NodeTypeCDCSource,
		NodeTypeCDCSink,
	)
}

// genTime generates a random time truncated to second precision for JSON compatibility.
func genTime() gopter.Gen {
	return gen.Int64Range(0, 2000000000).Map(func(secs int64) time.Time {
		return time.Unix(secs, 0).UTC()
	})
}

// genOptionalTime generates an optional time pointer.
func genOptionalTime() gopter.Gen {
	return gen.Bool().FlatMap(func(v interface{}) gopter.Gen {
		if v.(bool) {
			return genTime().Map(func(t time.Time) *time.Time {
				return &t
			})
		}
		return gen.Const((*time.Time)(nil))
	}, reflect.TypeOf((*time.Time)(nil)))
}

// genWorkflowNode generates a random WorkflowNode.
func genWorkflowNode() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		genNodeType(),
		gen.AlphaString(),
	).Map(func(vals []interface{}) WorkflowNode {
		return WorkflowNode{
			ID:   vals[0].(string),
			Type: vals[1].(NodeType),
			Name: vals[2].(string),
		}
	})
}

// genLogEntry generates a random LogEntry.
func genLogEntry() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		genLevel(),
		gen.AlphaString(),
		gen.AlphaString(),
		genTime(),
	).Map(func(vals []interface{}) LogEntry {
		return LogEntry{
			ID:        vals[0].(string),
			RunID:     vals[1].(string),
			Level:     vals[2].(Level),
			Message:   vals[3].(string),
			NodeID:    vals[4].(string),
			Timestamp: vals[5].(time.Time),
		}
	})
}

// genWorkflowRun generates a random WorkflowRun.
func genWorkflowRun() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		genRunStatus(),
		gen.OneConstOf(TriggerManual, TriggerSchedule),
		gen.SliceOf(gen.Identifier()),
		genTime(),
		genOptionalTime(),
	).Map(func(vals []interface{}) WorkflowRun {
		return WorkflowRun{
			ID:         vals[0].(string),
			WorkflowID: vals[1].(string),
			Status:     vals[2].(RunStatus),
			Trigger:    vals[3].(TriggerType),
			NodeIDs:    vals[4].([]string),
			StartedAt:  vals[5].(time.Time),
			FinishedAt: vals[6].(*time.Time),
		}
	})
}

func TestLogEntryJSONRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("LogEntry survives JSON round-trip", prop.ForAll(
		func(entry LogEntry) bool {
			data, err := json.Marshal(entry)
			if err != nil {
				return false
			}
			var decoded LogEntry
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			return reflect.DeepEqual(entry, decoded)
		},
		genLogEntry(),
	))

	properties.TestingRun(t)
}

func TestWorkflowRunJSONRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("WorkflowRun survives JSON round-trip", prop.ForAll(
		func(run WorkflowRun) bool {
			data, err := json.Marshal(run)
			if err != nil {
				return false
			}
			var decoded WorkflowRun
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			// NodeIDs may round-trip nil vs empty; normalize before comparing.
			if len(run.NodeIDs) == 0 && len(decoded.NodeIDs) == 0 {
				run.NodeIDs = nil
				decoded.NodeIDs = nil
			}
			return reflect.DeepEqual(run, decoded)
		},
		genWorkflowRun(),
	))

	properties.TestingRun(t)
}

func TestWorkflowNodeLookup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("Node finds every node by its own ID", prop.ForAll(
		func(nodes []WorkflowNode) bool {
			w := &Workflow{Nodes: nodes}
			seen := make(map[string]bool)
			for _, n := range nodes {
				if seen[n.ID] {
					continue // duplicate IDs resolve to the first occurrence
				}
				seen[n.ID] = true
				got := w.Node(n.ID)
				if got == nil || got.ID != n.ID {
					return false
				}
			}
			return w.Node("missing-node-id") == nil || seen["missing-node-id"]
		},
		gen.SliceOf(genWorkflowNode()),
	))

	properties.TestingRun(t)
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusCanceled}
	active := []RunStatus{RunStatusPending, RunStatusRunning}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
