package physics

import (
	"math"
	"sort"

	"github.com/TFMV/matchgraph/models"
	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/pkg/errors"
)

// ErrLayoutDiverged is returned when a layout produces a non-finite or
// missing coordinate.
var ErrLayoutDiverged = errors.New("physics: layout produced invalid coordinates")

// DefaultSeed is used when a caller passes a zero seed
const DefaultSeed int64 = 1234567890

// LayoutAlgorithm defines an interface for layout algorithms
type LayoutAlgorithm interface {
	Initialize(graph *models.Graph)
	Step() bool // Returns true if stable, false if needs more steps
	Positions() map[string]models.Point
	GetName() string
}

// LayoutProvider turns the node and edge set of a graph into 2D
// coordinates keyed by node ID.
type LayoutProvider interface {
	Layout(graph *models.Graph) (map[string]models.Point, error)
}

// ForceDirectedLayout implements a Fruchterman-Reingold force-directed layout.
// Node state lives in slices ordered by node ID so that a given seed always
// yields the same coordinates.
type ForceDirectedLayout struct {
	width           float64
	height          float64
	ids             []string
	positions       []position
	velocities      []velocity
	forces          []force
	springs         []spring
	temperature     float64
	k               float64 // optimal distance
	iterations      int
	maxIterations   int
	stable          bool
	energyThreshold float64
	gravity         float64 // Gravity factor
	repulsionForce  float64 // Repulsion strength
	dampingFactor   float64 // Damping for velocity
	springConstant  float64 // Spring stiffness
	rng             *xorshift
}

// Force vector components
type force struct {
	fx, fy float64
}

// Position coordinates
type position struct {
	x, y float64
}

// Velocity vector components
type velocity struct {
	vx, vy float64
}

// spring joins two node indexes; strength is the edge weight relative to
// the heaviest edge in the graph.
type spring struct {
	a, b     int
	strength float64
}

// NewForceDirectedLayout creates a new force-directed layout
func NewForceDirectedLayout(seed int64) *ForceDirectedLayout {
	return &ForceDirectedLayout{
		width:           800,
		height:          600,
		maxIterations:   500,
		energyThreshold: 0.001,
		gravity:         0.05,
		repulsionForce:  100.0,
		dampingFactor:   0.9,
		springConstant:  0.04,
		rng:             newXorshift(seed),
	}
}

// GetName returns the name of the layout algorithm
func (fd *ForceDirectedLayout) GetName() string {
	return "Force-Directed Layout"
}

// Initialize sets up the layout algorithm
func (fd *ForceDirectedLayout) Initialize(graph *models.Graph) {
	if graph.Width > 0 && graph.Height > 0 {
		fd.width = graph.Width
		fd.height = graph.Height
	}
	if graph.MaxIterations > 0 {
		fd.maxIterations = graph.MaxIterations
	}
	if graph.StabilizationThreshold > 0 {
		fd.energyThreshold = graph.StabilizationThreshold
	}

	nodes := sortedNodes(graph)
	n := len(nodes)
	fd.ids = make([]string, n)
	fd.positions = make([]position, n)
	fd.velocities = make([]velocity, n)
	fd.forces = make([]force, n)
	fd.springs = fd.springs[:0]
	fd.iterations = 0
	fd.stable = n == 0

	// Optimal distance between nodes
	area := fd.width * fd.height
	fd.k = math.Sqrt(area / math.Max(1, float64(n)))
	fd.temperature = math.Min(fd.width, fd.height) / 10

	index := make(map[string]int, n)
	for i, node := range nodes {
		fd.ids[i] = node.ID
		index[node.ID] = i
		if node.X == 0 && node.Y == 0 {
			fd.positions[i] = position{
				x: fd.rng.float() * fd.width,
				y: fd.rng.float() * fd.height,
			}
		} else {
			fd.positions[i] = position{x: node.X, y: node.Y}
		}
	}

	maxWeight := graph.MaxWeight()
	for _, edge := range graph.Edges {
		a, okA := index[edge.Source]
		b, okB := index[edge.Target]
		if !okA || !okB || a == b {
			continue
		}
		fd.springs = append(fd.springs, spring{a: a, b: b, strength: edge.Weight / maxWeight})
	}
}

// Step performs one iteration of the layout algorithm
func (fd *ForceDirectedLayout) Step() bool {
	if fd.iterations >= fd.maxIterations || fd.stable {
		return true
	}

	for i := range fd.forces {
		fd.forces[i] = force{}
	}

	centerX := fd.width / 2
	centerY := fd.height / 2

	for i := range fd.positions {
		pos1 := fd.positions[i]

		// Gravity toward the center, stronger from far away
		dx := centerX - pos1.x
		dy := centerY - pos1.y
		distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))
		gravityFactor := fd.gravity * (distance / math.Min(fd.width, fd.height))
		fd.forces[i].fx += dx * gravityFactor
		fd.forces[i].fy += dy * gravityFactor

		for j := i + 1; j < len(fd.positions); j++ {
			pos2 := fd.positions[j]

			dx := pos1.x - pos2.x
			dy := pos1.y - pos2.y
			distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))

			// F = k^2 / distance
			repulsiveForce := (fd.k * fd.k / distance) * fd.repulsionForce / 100.0

			dx /= distance
			dy /= distance
			fd.forces[i].fx += dx * repulsiveForce
			fd.forces[i].fy += dy * repulsiveForce
			fd.forces[j].fx -= dx * repulsiveForce
			fd.forces[j].fy -= dy * repulsiveForce
		}
	}

	// Springs pull connected nodes together, heavier edges pull harder
	for _, s := range fd.springs {
		pos1 := fd.positions[s.a]
		pos2 := fd.positions[s.b]

		dx := pos2.x - pos1.x
		dy := pos2.y - pos1.y
		distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))

		// F = distance^2 / k
		attractiveForce := distance * distance / fd.k * fd.springConstant
		attractiveForce *= 1.0 + s.strength

		dx /= distance
		dy /= distance
		fd.forces[s.a].fx += dx * attractiveForce
		fd.forces[s.a].fy += dy * attractiveForce
		fd.forces[s.b].fx -= dx * attractiveForce
		fd.forces[s.b].fy -= dy * attractiveForce
	}

	// Apply forces with temperature limiting (simulated annealing)
	padding := math.Min(fd.k*0.5, math.Min(fd.width, fd.height)/10)
	totalDisplacement := 0.0
	for i, f := range fd.forces {
		magnitude := math.Sqrt(f.fx*f.fx + f.fy*f.fy)
		if magnitude > 0 {
			scale := math.Min(magnitude, fd.temperature) / magnitude
			f.fx *= scale
			f.fy *= scale
		}

		v := fd.velocities[i]
		v.vx = (v.vx + f.fx) * fd.dampingFactor
		v.vy = (v.vy + f.fy) * fd.dampingFactor
		fd.velocities[i] = v

		before := fd.positions[i]
		pos := before
		pos.x = math.Max(padding, math.Min(fd.width-padding, pos.x+v.vx))
		pos.y = math.Max(padding, math.Min(fd.height-padding, pos.y+v.vy))
		fd.positions[i] = pos

		totalDisplacement += math.Hypot(pos.x-before.x, pos.y-before.y)
	}

	fd.temperature *= 0.95

	avgDisplacement := totalDisplacement / math.Max(1, float64(len(fd.positions)))
	fd.stable = avgDisplacement < fd.energyThreshold

	fd.iterations++
	return fd.stable
}

// Positions returns the current coordinates keyed by node ID
func (fd *ForceDirectedLayout) Positions() map[string]models.Point {
	out := make(map[string]models.Point, len(fd.ids))
	for i, id := range fd.ids {
		out[id] = models.Point{X: fd.positions[i].x, Y: fd.positions[i].y}
	}
	return out
}

// Iterations returns the number of steps taken so far
func (fd *ForceDirectedLayout) Iterations() int {
	return fd.iterations
}

// CircularLayout places nodes evenly on a circle in node ID order
type CircularLayout struct {
	positions map[string]models.Point
}

// NewCircularLayout creates a new circular layout
func NewCircularLayout() *CircularLayout {
	return &CircularLayout{positions: make(map[string]models.Point)}
}

// GetName returns the name of the layout algorithm
func (cl *CircularLayout) GetName() string {
	return "Circular Layout"
}

// Initialize arranges nodes in a circle
func (cl *CircularLayout) Initialize(graph *models.Graph) {
	nodes := sortedNodes(graph)
	totalNodes := float64(len(nodes))
	radius := math.Min(graph.Width, graph.Height) * 0.4
	centerX := graph.Width / 2
	centerY := graph.Height / 2

	cl.positions = make(map[string]models.Point, len(nodes))
	for i, node := range nodes {
		angle := (2 * math.Pi * float64(i)) / totalNodes
		cl.positions[node.ID] = models.Point{
			X: centerX + radius*math.Cos(angle),
			Y: centerY + radius*math.Sin(angle),
		}
	}
}

// Step is a no-op; the circle is final after Initialize
func (cl *CircularLayout) Step() bool {
	return true
}

// Positions returns the circle coordinates
func (cl *CircularLayout) Positions() map[string]models.Point {
	out := make(map[string]models.Point, len(cl.positions))
	for id, p := range cl.positions {
		out[id] = p
	}
	return out
}

// JitterLayout offsets the positions of a base layout with simplex noise so
// that nodes sharing a spot separate. The noise is seeded, so the output is
// reproducible.
type JitterLayout struct {
	baseLayout     LayoutAlgorithm
	noiseGenerator opensimplex.Noise
	noiseScale     float64
	amount         float64
	width          float64
	height         float64
}

// NewJitterLayout creates a jitter layout on top of base
func NewJitterLayout(base LayoutAlgorithm, seed int64, amount float64) *JitterLayout {
	return &JitterLayout{
		baseLayout:     base,
		noiseGenerator: opensimplex.New(seed),
		noiseScale:     0.03,
		amount:         amount,
	}
}

// GetName returns the name of the layout algorithm
func (jl *JitterLayout) GetName() string {
	return "Jitter Layout (" + jl.baseLayout.GetName() + ")"
}

// Initialize initializes the base layout
func (jl *JitterLayout) Initialize(graph *models.Graph) {
	jl.width, jl.height = 800, 600
	if graph.Width > 0 && graph.Height > 0 {
		jl.width = graph.Width
		jl.height = graph.Height
	}
	jl.baseLayout.Initialize(graph)
}

// Step performs one iteration of the base layout
func (jl *JitterLayout) Step() bool {
	return jl.baseLayout.Step()
}

// Positions returns the base positions displaced by noise and kept inside
// the drawing area.
func (jl *JitterLayout) Positions() map[string]models.Point {
	out := jl.baseLayout.Positions()
	for id, p := range out {
		noise1 := jl.noiseGenerator.Eval2(p.X*jl.noiseScale, p.Y*jl.noiseScale)
		noise2 := jl.noiseGenerator.Eval2(p.X*jl.noiseScale+100, p.Y*jl.noiseScale+100)
		p.X = math.Max(0, math.Min(jl.width, p.X+noise1*jl.amount))
		p.Y = math.Max(0, math.Min(jl.height, p.Y+noise2*jl.amount))
		out[id] = p
	}
	return out
}

// Helper functions

// xorshift is a small deterministic pseudo-random generator (0-1 range)
type xorshift struct {
	state uint32
}

func newXorshift(seed int64) *xorshift {
	if seed == 0 {
		seed = DefaultSeed
	}
	state := uint32(seed) ^ uint32(seed>>32)
	if state == 0 {
		state = uint32(DefaultSeed)
	}
	return &xorshift{state: state}
}

func (x *xorshift) float() float64 {
	x.state ^= x.state << 13
	x.state ^= x.state >> 17
	x.state ^= x.state << 5
	return float64(x.state) / float64(math.MaxUint32)
}

func sortedNodes(graph *models.Graph) []models.Node {
	nodes := make([]models.Node, len(graph.Nodes))
	copy(nodes, graph.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}
