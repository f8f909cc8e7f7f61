package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// NewNode creates a team node
func NewNode(team string) *Node {
	return &Node{
		ID:    team,
		Label: team,
		Size:  12.0,      // Default size
		Color: "#808080", // Default color (gray)
	}
}

// NewEdge creates a directed edge with an ID derived from its endpoints
func NewEdge(source, target string, weight float64) *Edge {
	return &Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
		Weight: weight,
		Width:  1.0,
		Color:  "#666666",
	}
}

// EdgeID returns the identifier used for the ordered pair source→target.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// SetPosition sets the position of a node
func (n *Node) SetPosition(p Point) {
	n.X = p.X
	n.Y = p.Y
}

// NewGraph creates a new graph with a unique ID
func NewGraph(name string) *Graph {
	return &Graph{
		ID:                     uuid.New().String(),
		Name:                   name,
		Nodes:                  []Node{},
		Edges:                  []Edge{},
		Width:                  800,   // Default width
		Height:                 600,   // Default height
		MaxIterations:          500,   // Default max iterations for physics
		StabilizationThreshold: 0.001, // Default stabilization threshold
		CreatedAt:              time.Now(),
	}
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node *Node) {
	node.NodeID = int64(len(g.Nodes) + 1)
	g.Nodes = append(g.Nodes, *node)
}

// AddEdge adds an edge to the graph. Both endpoints must already exist.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge.Source == edge.Target {
		return fmt.Errorf("self-loop on node %s is not allowed", edge.Source)
	}
	if !g.HasNode(edge.Source) {
		return fmt.Errorf("source node with ID %s does not exist in the graph", edge.Source)
	}
	if !g.HasNode(edge.Target) {
		return fmt.Errorf("target node with ID %s does not exist in the graph", edge.Target)
	}
	if edge.Weight <= 0 || math.IsNaN(edge.Weight) || math.IsInf(edge.Weight, 0) {
		return fmt.Errorf("edge %s has non-positive weight %v", edge.ID, edge.Weight)
	}

	g.Edges = append(g.Edges, *edge)
	return nil
}

// HasNode reports whether a node with the given ID exists
func (g *Graph) HasNode(id string) bool {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return true
		}
	}
	return false
}

// RemoveIsolated drops every node with no incident edge and returns how
// many were removed. Remaining nodes are renumbered.
func (g *Graph) RemoveIsolated() int {
	touched := make(map[string]bool, len(g.Nodes))
	for _, edge := range g.Edges {
		touched[edge.Source] = true
		touched[edge.Target] = true
	}

	kept := g.Nodes[:0]
	removed := 0
	for _, node := range g.Nodes {
		if !touched[node.ID] {
			removed++
			continue
		}
		kept = append(kept, node)
	}
	g.Nodes = kept

	for i := range g.Nodes {
		g.Nodes[i].NodeID = int64(i + 1)
	}
	return removed
}

// MaxWeight returns the largest edge weight, or 1 for a graph without edges
func (g *Graph) MaxWeight() float64 {
	maxWeight := 0.0
	for _, edge := range g.Edges {
		if edge.Weight > maxWeight {
			maxWeight = edge.Weight
		}
	}
	if maxWeight <= 0 {
		return 1
	}
	return maxWeight
}

// SetDimensions sets the width and height of the graph
func (g *Graph) SetDimensions(width, height float64) {
	g.Width = width
	g.Height = height
}

// SetPhysicsParameters sets the physics simulation parameters
func (g *Graph) SetPhysicsParameters(maxIterations int, stabilizationThreshold float64) {
	g.MaxIterations = maxIterations
	g.StabilizationThreshold = stabilizationThreshold
}
