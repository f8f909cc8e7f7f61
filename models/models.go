// Package models provides data structures for the matchgraph application.
// It defines the match dataset handed in by the data layer and the
// influence graph handed out to the rendering layer.
package models

import (
	"time"
)

// Point is a 2D layout coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a team in the influence graph
type Node struct {
	ID        string  `json:"id"`      // Team name, unique within a graph
	NodeID    int64   `json:"node_id"` // Numeric identifier for physics calculations
	Label     string  `json:"label"`
	InWeight  float64 `json:"in_weight"`  // Weighted in-degree, the "influence received"
	OutWeight float64 `json:"out_weight"` // Weighted out-degree
	InDegree  int     `json:"in_degree"`
	OutDegree int     `json:"out_degree"`
	Size      float64 `json:"size"`
	Color     string  `json:"color"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Edge represents a directed dominance relation between two teams
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"` // ID of the dominating team
	Target string  `json:"target"` // ID of the dominated team
	Weight float64 `json:"weight"`
	Width  float64 `json:"width"` // Normalized line width, 1..3
	Label  string  `json:"label,omitempty"`
	Color  string  `json:"color"`
}

// Graph is a weighted directed graph of teams
type Graph struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Nodes                  []Node    `json:"nodes"`
	Edges                  []Edge    `json:"edges"`
	Width                  float64   `json:"width"`
	Height                 float64   `json:"height"`
	MaxIterations          int       `json:"max_iterations"`
	StabilizationThreshold float64   `json:"stabilization_threshold"`
	CreatedAt              time.Time `json:"created_at"`
}
