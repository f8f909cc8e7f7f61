package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/TFMV/matchgraph/graph"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format         string  // Output format (svg, ascii, json, dot)
	Width          float64 // Width of the output
	Height         float64 // Height of the output
	Background     string  // Background color
	Timestamp      bool    // Include timestamp in visualization
	NodeSize       float64 // Default node size
	FontSize       float64 // Font size for labels
	ShowLabels     bool    // Show node labels
	ShowEdgeLabels bool    // Show edge labels
	ColorScheme    string  // Color scale for influence (default, dark, greens)
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render draws the figure using the provided options
	Render(fig *Figure, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// ContentType returns the MIME type of the output
	ContentType() string
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:         format,
		Width:          1200,
		Height:         900,
		Background:     "#f8f8f8",
		Timestamp:      false,
		NodeSize:       12.0,
		FontSize:       11.0,
		ShowLabels:     true,
		ShowEdgeLabels: false,
		ColorScheme:    "default",
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot":
		return &DOTRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Generate renders a build result in the format named by options
func Generate(res graph.Result, options *OutputOptions) ([]byte, error) {
	if options == nil {
		options = NewDefaultOptions("svg")
	}
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}
	output, err := renderer.Render(NewFigure(res, options), options)
	if err != nil {
		return nil, fmt.Errorf("rendering failed: %w", err)
	}
	return output, nil
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// ContentType returns the MIME type of the output
func (r *SVGRenderer) ContentType() string {
	return "image/svg+xml"
}

// Render creates an SVG representation of the figure
func (r *SVGRenderer) Render(fig *Figure, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, options.Width, options.Height, options.Width, options.Height, options.Background)

	if fig.Empty() {
		message := fig.Message
		if message == "" {
			message = graph.MessageNoSignificantRelationships
		}
		fmt.Fprintf(&buf, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="%.1f" fill="#808080" text-anchor="middle">%s</text>
</svg>`, options.Width/2, options.Height/2, options.FontSize*1.6, html.EscapeString(message))
		return buf.Bytes(), nil
	}

	buf.WriteString(`<defs>
  <marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5"
      markerWidth="6" markerHeight="6" orient="auto">
    <path d="M0,0 L10,5 L0,10 z" fill="#666666"/>
  </marker>
</defs>
`)
	fmt.Fprintf(&buf, `<text x="10" y="%.1f" font-family="sans-serif" font-size="%.1f" fill="#333333">%s</text>
`, options.FontSize+8, options.FontSize*1.3, html.EscapeString(fig.Title))

	radius := make(map[string]float64, len(fig.Nodes))
	for _, n := range fig.Nodes {
		radius[n.ID] = n.Size
	}

	for _, edge := range fig.Edges {
		// Stop the line at the target circle so the arrow head stays visible
		x1, y1 := shorten(edge.X0, edge.Y0, edge.X1, edge.Y1, radius[edge.Target]+2)
		fmt.Fprintf(&buf, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.2f" stroke-opacity="0.7" marker-end="url(#arrow)"><title>%s → %s: %s</title></line>
`, edge.X0, edge.Y0, x1, y1, edge.Color, edge.Width,
			html.EscapeString(edge.Source), html.EscapeString(edge.Target), html.EscapeString(edgeText(edge)))

		if options.ShowEdgeLabels && edge.Label != "" {
			midX := (edge.X0 + edge.X1) / 2
			midY := (edge.Y0 + edge.Y1) / 2
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%.1f" fill="%s" text-anchor="middle">%s</text>
`, midX, midY, options.FontSize*0.8, edge.Color, html.EscapeString(edge.Label))
		}
	}

	for _, node := range fig.Nodes {
		fmt.Fprintf(&buf, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s" stroke="rgba(0,0,0,0.3)" stroke-width="0.5"><title>%s: influence received %g</title></circle>
`, node.X, node.Y, node.Size, node.Color, html.EscapeString(node.Label), node.Influence)

		if options.ShowLabels && node.Label != "" {
			labelY := node.Y + node.Size + options.FontSize + 2
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%.1f" fill="#333333" text-anchor="middle">%s</text>
`, node.X, labelY, options.FontSize, html.EscapeString(node.Label))
		}
	}

	// Influence legend
	scale := GetColorScale(options.ColorScheme)
	fmt.Fprintf(&buf, `<text x="10" y="%.1f" font-family="sans-serif" font-size="%.1f" fill="#808080">influence received: <tspan fill="%s">0</tspan> … <tspan fill="%s">%g</tspan></text>
`, options.Height-10, options.FontSize, scale.Low, scale.High, fig.MaxInfluence)

	if options.Timestamp {
		timeStr := time.Now().Format("2006-01-02 15:04:05")
		fmt.Fprintf(&buf, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="8" fill="#808080" text-anchor="end">%s</text>
`, options.Width-5, options.Height-5, timeStr)
	}

	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// ContentType returns the MIME type of the output
func (r *ASCIIRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Render creates an ASCII representation of the figure followed by an edge list
func (r *ASCIIRenderer) Render(fig *Figure, options *OutputOptions) ([]byte, error) {
	if fig.Empty() {
		return []byte(fig.Message + "\n"), nil
	}

	width := max(int(options.Width/10), 40)
	height := max(int(options.Height/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0] = '+'
	grid[0][width-1] = '+'
	grid[height-1][0] = '+'
	grid[height-1][width-1] = '+'

	toGrid := func(x, y float64) (int, int) {
		gx := clamp(int(x*float64(width-2)/options.Width)+1, 1, width-2)
		gy := clamp(int(y*float64(height-2)/options.Height)+1, 1, height-2)
		return gx, gy
	}

	for _, edge := range fig.Edges {
		x1, y1 := toGrid(edge.X0, edge.Y0)
		x2, y2 := toGrid(edge.X1, edge.Y1)
		drawLine(grid, x1, y1, x2, y2)
	}

	for _, node := range fig.Nodes {
		x, y := toGrid(node.X, node.Y)
		grid[y][x] = 'O'

		if options.ShowLabels && node.Label != "" && y+1 < height-1 {
			label := []rune(node.Label)
			for i := 0; i < len(label) && x+i < width-1; i++ {
				grid[y+1][x+i] = label[i]
			}
		}
	}

	var result strings.Builder
	result.WriteString(fig.Title)
	result.WriteRune('\n')
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	for _, edge := range fig.Edges {
		fmt.Fprintf(&result, "%s -> %s  %s\n", edge.Source, edge.Target, edgeText(edge))
	}

	return []byte(result.String()), nil
}

// JSONRenderer outputs the figure as JSON
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// ContentType returns the MIME type of the output
func (r *JSONRenderer) ContentType() string {
	return "application/json"
}

// Render creates a JSON representation of the figure
func (r *JSONRenderer) Render(fig *Figure, options *OutputOptions) ([]byte, error) {
	return json.MarshalIndent(fig, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// ContentType returns the MIME type of the output
func (r *DOTRenderer) ContentType() string {
	return "text/vnd.graphviz"
}

// Render creates a DOT representation of the figure
func (r *DOTRenderer) Render(fig *Figure, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("digraph influence {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, label=%q];\n", options.Background, fig.Title)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fontname=\"Arial\", fontsize=%g];\n", options.FontSize)

	if fig.Empty() {
		fmt.Fprintf(&buf, "  message [shape=plaintext, style=\"\", label=%q];\n", fig.Message)
		buf.WriteString("}\n")
		return buf.Bytes(), nil
	}

	for _, node := range fig.Nodes {
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q, width=%.2f, pos=\"%.2f,%.2f!\"];\n",
			node.ID, node.Label, node.Color, node.Size/20.0, node.X/72.0, (options.Height-node.Y)/72.0)
	}

	for _, edge := range fig.Edges {
		fmt.Fprintf(&buf, "  %q -> %q [weight=%g, penwidth=%.2f, color=%q, label=%q];\n",
			edge.Source, edge.Target, edge.Weight, edge.Width, edge.Color, edge.Label)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Helper functions

func edgeText(edge FigureEdge) string {
	if edge.Label != "" {
		return edge.Label
	}
	return fmt.Sprintf("%g", edge.Weight)
}

// shorten moves (x1, y1) toward (x0, y0) by d
func shorten(x0, y0, x1, y1, d float64) (float64, float64) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length <= d || length == 0 {
		return x1, y1
	}
	f := (length - d) / length
	return x0 + dx*f, y0 + dy*f
}

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Draw a line on the ASCII grid using Bresenham's algorithm
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if x1 >= 0 && x1 < len(grid[0]) && y1 >= 0 && y1 < len(grid) && grid[y1][x1] == ' ' {
			grid[y1][x1] = '·'
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

// Absolute value of an integer
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Parse a hex color string into RGB components
func parseHexColor(hex string) (uint8, uint8, uint8) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) == 3 {
		r := parseHexDigit(hex[0])
		g := parseHexDigit(hex[1])
		b := parseHexDigit(hex[2])
		return r * 17, g * 17, b * 17
	} else if len(hex) >= 6 {
		return parseHexByte(hex[0:2]), parseHexByte(hex[2:4]), parseHexByte(hex[4:6])
	}

	// Default to black if invalid
	return 0, 0, 0
}

func parseHexDigit(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func parseHexByte(s string) uint8 {
	var result uint8
	for i := 0; i < len(s); i++ {
		result = result*16 + parseHexDigit(s[i])
	}
	return result
}
