package render

import (
	"fmt"
	"math"

	"github.com/TFMV/matchgraph/graph"
)

// FigureNode is a team as the rendering layer sees it
type FigureNode struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Size      float64 `json:"size"`
	Color     string  `json:"color"`
	Influence float64 `json:"influence"` // Weighted in-degree
	Dominance float64 `json:"dominance"` // Weighted out-degree
}

// FigureEdge is a drawable directed edge
type FigureEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	X0     float64 `json:"x0"`
	Y0     float64 `json:"y0"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	Weight float64 `json:"weight"`
	Width  float64 `json:"width"`
	Label  string  `json:"label,omitempty"`
	Color  string  `json:"color"`
}

// Figure is everything a renderer needs: positions, labels, color
// scalars, edge endpoints and widths, or a message to show instead.
type Figure struct {
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Message      string       `json:"message,omitempty"`
	Mode         string       `json:"mode"`
	Threshold    int          `json:"threshold"`
	Width        float64      `json:"width"`
	Height       float64      `json:"height"`
	MaxInfluence float64      `json:"max_influence"`
	Nodes        []FigureNode `json:"nodes"`
	Edges        []FigureEdge `json:"edges"`
}

// Empty reports whether the figure carries a message instead of a graph
func (f *Figure) Empty() bool {
	return f.Message != "" || len(f.Nodes) == 0
}

// NewFigure prepares a build result for drawing. Node colors come from the
// options' color scale applied to each node's influence.
func NewFigure(res graph.Result, options *OutputOptions) *Figure {
	if options == nil {
		options = NewDefaultOptions("json")
	}
	fig := &Figure{
		Title:     fmt.Sprintf("Team influence (%s)", res.Mode),
		Status:    res.Status.String(),
		Message:   res.Message,
		Mode:      res.Mode.String(),
		Threshold: res.Threshold,
		Width:     options.Width,
		Height:    options.Height,
		Nodes:     []FigureNode{},
		Edges:     []FigureEdge{},
	}
	if !res.OK() || res.Graph == nil {
		return fig
	}

	g := res.Graph
	// Scale layout coordinates into the output area
	sx, sy := 1.0, 1.0
	if g.Width > 0 && g.Height > 0 {
		sx = options.Width / g.Width
		sy = options.Height / g.Height
	}

	for _, n := range g.Nodes {
		fig.MaxInfluence = math.Max(fig.MaxInfluence, n.InWeight)
	}
	scale := GetColorScale(options.ColorScheme)

	index := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		index[n.ID] = len(fig.Nodes)
		size := n.Size
		if size <= 0 {
			size = options.NodeSize
		}
		fig.Nodes = append(fig.Nodes, FigureNode{
			ID:        n.ID,
			Label:     n.Label,
			X:         n.X * sx,
			Y:         n.Y * sy,
			Size:      size,
			Color:     scale.At(ratio(n.InWeight, fig.MaxInfluence)),
			Influence: n.InWeight,
			Dominance: n.OutWeight,
		})
	}

	for _, e := range g.Edges {
		si, okS := index[e.Source]
		ti, okT := index[e.Target]
		if !okS || !okT {
			continue
		}
		src, dst := fig.Nodes[si], fig.Nodes[ti]
		color := e.Color
		if color == "" {
			color = scale.Edge
		}
		fig.Edges = append(fig.Edges, FigureEdge{
			Source: e.Source,
			Target: e.Target,
			X0:     src.X,
			Y0:     src.Y,
			X1:     dst.X,
			Y1:     dst.Y,
			Weight: e.Weight,
			Width:  e.Width,
			Label:  e.Label,
			Color:  color,
		})
	}
	return fig
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

// ColorScale maps an influence ratio in [0,1] onto a two-color gradient
type ColorScale struct {
	Low  string
	High string
	Edge string
}

// GetColorScale returns a color scale by scheme name
func GetColorScale(scheme string) ColorScale {
	switch scheme {
	case "dark":
		return ColorScale{Low: "#1A237E", High: "#FF6D00", Edge: "#9E9E9E"}
	case "greens":
		return ColorScale{Low: "#E8F5E9", High: "#1B5E20", Edge: "#666666"}
	default:
		return ColorScale{Low: "#FBBC05", High: "#EA4335", Edge: "#666666"}
	}
}

// At interpolates the scale at t, clamped to [0,1]
func (c ColorScale) At(t float64) string {
	t = math.Max(0, math.Min(1, t))
	r1, g1, b1 := parseHexColor(c.Low)
	r2, g2, b2 := parseHexColor(c.High)
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return fmt.Sprintf("#%02X%02X%02X", lerp(r1, r2), lerp(g1, g2), lerp(b1, b2))
}
