package graph

import (
	"math"

	"github.com/TFMV/matchgraph/models"
	"github.com/TFMV/matchgraph/physics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config holds the drawing-area settings handed to the layout
type Config struct {
	Width                  float64
	Height                 float64
	MaxIterations          int
	StabilizationThreshold float64
}

// DefaultConfig returns the settings used by the dashboard
func DefaultConfig() Config {
	return Config{
		Width:                  1200,
		Height:                 900,
		MaxIterations:          500,
		StabilizationThreshold: 0.001,
	}
}

// Builder turns a match frame into an influence graph. It keeps no state
// between calls and may be shared by concurrent callers as long as its
// LayoutProvider may be.
type Builder struct {
	cfg    Config
	layout physics.LayoutProvider
	logger *zap.Logger
}

// NewBuilder creates a builder. A nil layout selects the default seeded
// force-directed simulation; a nil logger discards output.
func NewBuilder(cfg Config, layout physics.LayoutProvider, logger *zap.Logger) *Builder {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.StabilizationThreshold <= 0 {
		cfg.StabilizationThreshold = def.StabilizationThreshold
	}
	if layout == nil {
		// The force layout name is always valid.
		layout, _ = physics.NewSimulation(physics.LayoutForce, physics.DefaultSeed, 0, cfg.MaxIterations)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, layout: layout, logger: logger.Named("graph")}
}

// Build constructs the influence graph for frame. It never panics and never
// returns an error: every failure becomes a sentinel Result whose Message
// can be shown to the user.
func (b *Builder) Build(frame *models.Frame, mode Mode, threshold int) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = b.failure(mode, threshold, errors.Errorf("panic: %v", r))
		}
	}()

	if frame.Len() == 0 {
		return b.insufficient(mode, threshold, ErrEmptyFrame)
	}
	if missing := frame.MissingColumns(RequiredColumns...); len(missing) > 0 {
		return b.insufficient(mode, threshold, errors.Wrapf(ErrMissingColumns, "%v", missing))
	}

	records, err := readRecords(frame, b.logger)
	if err != nil {
		return b.failure(mode, threshold, err)
	}

	tallies, err := aggregate(records, mode, threshold)
	if err != nil {
		return b.failure(mode, threshold, err)
	}

	g, err := b.assemble(records, tallies, mode)
	if err != nil {
		return b.failure(mode, threshold, err)
	}
	if len(g.Edges) == 0 {
		b.logger.Debug("no edges survived aggregation",
			zap.Stringer("mode", mode),
			zap.Int("threshold", threshold),
			zap.Int("matches", len(records)),
		)
		return sentinel(StatusNoSignificantRelationships, MessageNoSignificantRelationships, mode, threshold, nil)
	}

	positions, err := b.layout.Layout(g)
	if err != nil {
		return b.failure(mode, threshold, errors.Wrap(err, "layout"))
	}
	for i := range g.Nodes {
		g.Nodes[i].SetPosition(positions[g.Nodes[i].ID])
	}

	b.logger.Debug("graph built",
		zap.Stringer("mode", mode),
		zap.Int("threshold", threshold),
		zap.Int("matches", len(records)),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return Result{Status: StatusOK, Mode: mode, Threshold: threshold, Graph: g}
}

// assemble creates nodes for every team seen, adds the aggregated edges,
// drops isolated teams and fills in the derived weights.
func (b *Builder) assemble(records []models.MatchRecord, tallies map[pair]*tally, mode Mode) (*models.Graph, error) {
	g := models.NewGraph("Team influence: " + mode.String())
	g.SetDimensions(b.cfg.Width, b.cfg.Height)
	g.SetPhysicsParameters(b.cfg.MaxIterations, b.cfg.StabilizationThreshold)

	for _, team := range teamsOf(records) {
		g.AddNode(models.NewNode(team))
	}

	for _, p := range sortedPairs(tallies) {
		t := tallies[p]
		if t.weight <= 0 {
			continue
		}
		edge := models.NewEdge(p.source, p.target, t.weight)
		edge.Label = t.label(mode)
		if err := g.AddEdge(edge); err != nil {
			return nil, errors.Wrap(err, "adding edge")
		}
	}

	if removed := g.RemoveIsolated(); removed > 0 {
		b.logger.Debug("dropped isolated teams", zap.Int("count", removed))
	}

	normalize(g)
	return g, nil
}

// normalize sets edge widths to 1 + 2·(w / max w) and node degree figures.
// Node size grows with total weighted degree.
func normalize(g *models.Graph) {
	maxWeight := g.MaxWeight()
	for i := range g.Edges {
		g.Edges[i].Width = 1 + 2*(g.Edges[i].Weight/maxWeight)
	}

	maxTotal := 0.0
	for i := range g.Nodes {
		n := &g.Nodes[i]
		n.InWeight = g.WeightedInDegree(n.ID)
		n.OutWeight = g.WeightedOutDegree(n.ID)
		n.InDegree = len(g.FindIncomingEdges(n.ID))
		n.OutDegree = len(g.FindOutgoingEdges(n.ID))
		maxTotal = math.Max(maxTotal, n.InWeight+n.OutWeight)
	}
	if maxTotal <= 0 {
		maxTotal = 1
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		n.Size = 8 + 16*((n.InWeight+n.OutWeight)/maxTotal)
	}
}

func teamsOf(records []models.MatchRecord) []string {
	seen := make(map[string]bool)
	var teams []string
	for _, r := range records {
		for _, team := range []string{r.HomeTeam, r.AwayTeam} {
			if !seen[team] {
				seen[team] = true
				teams = append(teams, team)
			}
		}
	}
	return teams
}

func (b *Builder) insufficient(mode Mode, threshold int, err error) Result {
	b.logger.Info("not enough data for influence graph", zap.Stringer("mode", mode), zap.Error(err))
	return sentinel(StatusInsufficientData, MessageInsufficientData, mode, threshold, err)
}

func (b *Builder) failure(mode Mode, threshold int, err error) Result {
	b.logger.Error("influence graph construction failed",
		zap.Stringer("mode", mode),
		zap.Int("threshold", threshold),
		zap.Error(err),
	)
	return sentinel(StatusConstructionFailure, MessageConstructionFailure, mode, threshold, err)
}

func sentinel(status Status, message string, mode Mode, threshold int, err error) Result {
	g := models.NewGraph(message)
	return Result{
		Status:    status,
		Message:   message,
		Mode:      mode,
		Threshold: threshold,
		Graph:     g,
		Err:       err,
	}
}
