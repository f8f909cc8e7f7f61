package models

import (
	"fmt"
)

// FindNodeByID returns a node by its ID
func (g *Graph) FindNodeByID(id string) (*Node, error) {
	for i, node := range g.Nodes {
		if node.ID == id {
			return &g.Nodes[i], nil
		}
	}
	return nil, fmt.Errorf("node with ID %s not found", id)
}

// FindEdge returns the edge for the ordered pair source→target
func (g *Graph) FindEdge(source, target string) (*Edge, error) {
	for i, edge := range g.Edges {
		if edge.Source == source && edge.Target == target {
			return &g.Edges[i], nil
		}
	}
	return nil, fmt.Errorf("edge %s not found", EdgeID(source, target))
}

// FindOutgoingEdges returns all edges originating from a node
func (g *Graph) FindOutgoingEdges(nodeID string) []Edge {
	var result []Edge
	for _, edge := range g.Edges {
		if edge.Source == nodeID {
			result = append(result, edge)
		}
	}
	return result
}

// FindIncomingEdges returns all edges targeting a node
func (g *Graph) FindIncomingEdges(nodeID string) []Edge {
	var result []Edge
	for _, edge := range g.Edges {
		if edge.Target == nodeID {
			result = append(result, edge)
		}
	}
	return result
}

// WeightedInDegree returns the sum of incoming edge weights for a node
func (g *Graph) WeightedInDegree(nodeID string) float64 {
	total := 0.0
	for _, edge := range g.FindIncomingEdges(nodeID) {
		total += edge.Weight
	}
	return total
}

// WeightedOutDegree returns the sum of outgoing edge weights for a node
func (g *Graph) WeightedOutDegree(nodeID string) float64 {
	total := 0.0
	for _, edge := range g.FindOutgoingEdges(nodeID) {
		total += edge.Weight
	}
	return total
}
