package physics

import (
	"math"
	"testing"

	"github.com/TFMV/matchgraph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ring(ids ...string) *models.Graph {
	g := models.NewGraph("ring")
	g.SetDimensions(800, 600)
	for _, id := range ids {
		g.AddNode(models.NewNode(id))
	}
	for i := range ids {
		next := ids[(i+1)%len(ids)]
		if err := g.AddEdge(models.NewEdge(ids[i], next, float64(i+1))); err != nil {
			panic(err)
		}
	}
	return g
}

func TestSimulationIsReproducible(t *testing.T) {
	sim, err := NewSimulation(LayoutForce, 42, 0, 200)
	require.NoError(t, err)

	first, err := sim.Layout(ring("A", "B", "C", "D", "E"))
	require.NoError(t, err)
	second, err := sim.Layout(ring("A", "B", "C", "D", "E"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulationIgnoresNodeOrder(t *testing.T) {
	sim, err := NewSimulation(LayoutForce, 7, 0, 100)
	require.NoError(t, err)

	a, err := sim.Layout(ring("A", "B", "C"))
	require.NoError(t, err)

	g := models.NewGraph("shuffled")
	g.SetDimensions(800, 600)
	for _, id := range []string{"C", "A", "B"} {
		g.AddNode(models.NewNode(id))
	}
	require.NoError(t, g.AddEdge(models.NewEdge("A", "B", 1)))
	require.NoError(t, g.AddEdge(models.NewEdge("B", "C", 2)))
	require.NoError(t, g.AddEdge(models.NewEdge("C", "A", 3)))

	b, err := sim.Layout(g)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulationSeedsDiffer(t *testing.T) {
	one, err := NewSimulation(LayoutForce, 1, 0, 1)
	require.NoError(t, err)
	two, err := NewSimulation(LayoutForce, 2, 0, 1)
	require.NoError(t, err)

	a, err := one.Layout(ring("A", "B", "C"))
	require.NoError(t, err)
	b, err := two.Layout(ring("A", "B", "C"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestForceLayoutStaysInBounds(t *testing.T) {
	g := ring("A", "B", "C", "D", "E", "F", "G", "H")
	sim, err := NewSimulation(LayoutForce, 0, 0, 300)
	require.NoError(t, err)

	pos, err := sim.Layout(g)
	require.NoError(t, err)
	require.Len(t, pos, 8)
	for id, p := range pos {
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y), id)
		assert.True(t, p.X >= 0 && p.X <= g.Width, "%s x=%v", id, p.X)
		assert.True(t, p.Y >= 0 && p.Y <= g.Height, "%s y=%v", id, p.Y)
	}
}

func TestCircularLayout(t *testing.T) {
	sim, err := NewSimulation(LayoutCircular, 0, 0, 1)
	require.NoError(t, err)

	pos, err := sim.Layout(ring("A", "B", "C", "D"))
	require.NoError(t, err)

	radius := 600 * 0.4
	for id, p := range pos {
		assert.InDelta(t, radius, math.Hypot(p.X-400, p.Y-300), 1e-9, id)
	}
	assert.InDelta(t, 400+radius, pos["A"].X, 1e-9)
}

func TestJitterLayoutIsSeeded(t *testing.T) {
	sim, err := NewSimulation(LayoutCircular, 99, 15, 1)
	require.NoError(t, err)

	a, err := sim.Layout(ring("A", "B", "C"))
	require.NoError(t, err)
	b, err := sim.Layout(ring("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	plain, err := NewSimulation(LayoutCircular, 99, 0, 1)
	require.NoError(t, err)
	c, err := plain.Layout(ring("A", "B", "C"))
	require.NoError(t, err)
	for id := range c {
		assert.InDelta(t, c[id].X, a[id].X, 15, id)
		assert.InDelta(t, c[id].Y, a[id].Y, 15, id)
	}
}

func TestEmptyGraphLayout(t *testing.T) {
	sim, err := NewSimulation(LayoutForce, 0, 0, 10)
	require.NoError(t, err)
	pos, err := sim.Layout(models.NewGraph("empty"))
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestUnknownLayout(t *testing.T) {
	_, err := NewSimulation("voronoi", 0, 0, 10)
	assert.Error(t, err)
}

func TestForceLayoutHonorsIterationCap(t *testing.T) {
	g := ring("A", "B", "C", "D")
	g.SetPhysicsParameters(3, 1e-12)

	fd := NewForceDirectedLayout(DefaultSeed)
	fd.Initialize(g)
	for i := 0; i < 10 && !fd.Step(); i++ {
	}
	assert.Equal(t, 3, fd.Iterations())
	assert.True(t, fd.Step(), "a capped layout reports itself done")
}
