package physics

import (
	"math"
	"strings"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
)

// Layout algorithm names accepted by GetLayoutAlgorithm
const (
	LayoutForce    = "force"
	LayoutCircular = "circular"
)

// GetLayoutAlgorithm returns a layout algorithm by name. A positive jitter
// wraps the algorithm in a JitterLayout.
func GetLayoutAlgorithm(name string, seed int64, jitter float64) (LayoutAlgorithm, error) {
	var algorithm LayoutAlgorithm
	switch strings.ToLower(name) {
	case "", LayoutForce:
		algorithm = NewForceDirectedLayout(seed)
	case LayoutCircular:
		algorithm = NewCircularLayout()
	default:
		return nil, errors.Errorf("physics: unknown layout %q", name)
	}
	if jitter > 0 {
		algorithm = NewJitterLayout(algorithm, seed, jitter)
	}
	return algorithm, nil
}

// Simulation is a LayoutProvider that runs a fresh LayoutAlgorithm for
// every call, so one Simulation can serve concurrent callers.
type Simulation struct {
	name          string
	seed          int64
	jitter        float64
	maxIterations int
}

// NewSimulation validates the layout name and returns a provider
func NewSimulation(name string, seed int64, jitter float64, maxIterations int) (*Simulation, error) {
	if _, err := GetLayoutAlgorithm(name, seed, jitter); err != nil {
		return nil, err
	}
	if maxIterations <= 0 {
		maxIterations = 500
	}
	return &Simulation{
		name:          name,
		seed:          seed,
		jitter:        jitter,
		maxIterations: maxIterations,
	}, nil
}

// Layout runs the simulation until it is stable or the iteration cap is
// reached and returns the final coordinates.
func (s *Simulation) Layout(graph *models.Graph) (map[string]models.Point, error) {
	if len(graph.Nodes) == 0 {
		return map[string]models.Point{}, nil
	}

	algorithm, err := GetLayoutAlgorithm(s.name, s.seed, s.jitter)
	if err != nil {
		return nil, err
	}
	algorithm.Initialize(graph)

	for i := 0; i < s.maxIterations; i++ {
		if algorithm.Step() {
			break
		}
	}

	positions := algorithm.Positions()
	for _, node := range graph.Nodes {
		p, ok := positions[node.ID]
		if !ok {
			return nil, errors.Wrapf(ErrLayoutDiverged, "%s: node %s has no position", algorithm.GetName(), node.ID)
		}
		if !finite(p.X) || !finite(p.Y) {
			return nil, errors.Wrapf(ErrLayoutDiverged, "%s: node %s at (%v, %v)", algorithm.GetName(), node.ID, p.X, p.Y)
		}
	}
	return positions, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
