// Package pipeline parses and validates workflow definitions.
//
// Workflows are authored as YAML documents naming nodes and the edges
// between them. A definition must form a DAG: validation rejects duplicate
// node IDs, dangling edges, and cycles before anything is persisted.
package pipeline

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flowdeck/console/internal/models"
)

// Validation errors.
var (
	ErrEmptyDefinition = errors.New("definition has no nodes")
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrUnknownNode     = errors.New("edge references unknown node")
	ErrCycle           = errors.New("definition contains a cycle")
)

// Node is a single step in a workflow definition.
type Node struct {
	ID   string `yaml:"id" json:"id"`
	Type string `yaml:"type" json:"type"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Edge is a directed dependency between two nodes.
type Edge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Definition is the YAML shape of a workflow.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Nodes       []Node `yaml:"nodes" json:"nodes"`
	Edges       []Edge `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// Parse decodes a YAML workflow definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	return &def, nil
}

// Validate checks structural invariants of a definition.
func (d *Definition) Validate() error {
	if len(d.Nodes) == 0 {
		return ErrEmptyDefinition
	}
	if d.Name == "" {
		return errors.New("definition name is required")
	}

	seen := make(map[string]bool, len(d.Nodes))
	for _, node := range d.Nodes {
		if node.ID == "" {
			return errors.New("node id is required")
		}
		if seen[node.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
		}
		seen[node.ID] = true

		if !validNodeType(node.Type) {
			return fmt.Errorf("node %s has unknown type %q", node.ID, node.Type)
		}
	}

	adjacency := make(map[string][]string, len(d.Nodes))
	for _, edge := range d.Edges {
		if !seen[edge.From] {
			return fmt.Errorf("%w: %s", ErrUnknownNode, edge.From)
		}
		if !seen[edge.To] {
			return fmt.Errorf("%w: %s", ErrUnknownNode, edge.To)
		}
		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
	}

	if hasCycle(d.Nodes, adjacency) {
		return ErrCycle
	}

	return nil
}

// ToWorkflow converts a validated definition into the persistence model.
func (d *Definition) ToWorkflow(id, ownerID string) *models.Workflow {
	workflow := &models.Workflow{
		ID:          id,
		OwnerID:     ownerID,
		Name:        d.Name,
		Description: d.Description,
		Nodes:       make([]models.WorkflowNode, 0, len(d.Nodes)),
		Edges:       make([]models.Edge, 0, len(d.Edges)),
	}
	for _, node := range d.Nodes {
		workflow.Nodes = append(workflow.Nodes, models.WorkflowNode{
			ID:   node.ID,
			Type: models.NodeType(node.Type),
			Name: node.Name,
		})
	}
	for _, edge := range d.Edges {
		workflow.Edges = append(workflow.Edges, models.Edge{From: edge.From, To: edge.To})
	}
	return workflow
}

// Marshal encodes a definition back to YAML.
func (d *Definition) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling definition: %w", err)
	}
	return data, nil
}

func validNodeType(t string) bool {
	switch models.NodeType(t) {
	case models.NodeTypeInput, models.NodeTypeTransform, models.NodeTypeOutput,
		models.NodeTypeCDCSource, models.NodeTypeCDCSink:
		return true
	}
	return false
}

// hasCycle runs a three-color DFS over the adjacency map.
func hasCycle(nodes []Node, adjacency map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, node := range nodes {
		if color[node.ID] == white {
			if visit(node.ID) {
				return true
			}
		}
	}
	return false
}
