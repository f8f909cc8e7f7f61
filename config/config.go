// Package config loads runtime settings from a .env file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/TFMV/matchgraph/graph"
	"github.com/TFMV/matchgraph/models"
	"github.com/TFMV/matchgraph/physics"
	"github.com/TFMV/matchgraph/render"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Commands understood by the binary
const (
	CommandServe  = "serve"
	CommandRender = "render"
	CommandImport = "import"
)

// Config represents all the settings for the application
type Config struct {
	Command string

	// Input and output
	DataFile   string
	OutputFile string
	Format     string

	// Graph construction
	GraphMode     graph.Mode
	Threshold     int
	Layout        string
	Seed          int64
	Jitter        float64
	MaxIterations int
	Width         float64
	Height        float64
	ColorScheme   string
	EdgeLabels    bool
	Timestamp     bool

	// Dataset narrowing for render
	From        string
	To          string
	Competition string
	Team        string

	// Serving
	Port            int
	ShutdownTimeout time.Duration

	// Storage and import
	DatabaseURL  string
	APIKey       string
	APIBaseURL   string
	Competitions []string
	Season       int

	LogLevel  string
	LogFormat string
}

// Load reads the optional env file named by MATCHGRAPH_ENV_FILE (default
// .env), then parses args on top of the environment.
func Load(args []string) (*Config, error) {
	envFile := envOrDefault("MATCHGRAPH_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "loading %s", envFile)
	}

	cfg := &Config{}
	flags := flag.NewFlagSet("matchgraph", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var mode, competitions string
	flags.StringVar(&cfg.Command, "mode", envOrDefault("MATCHGRAPH_COMMAND", CommandRender), "command: serve, render, import")
	flags.StringVar(&cfg.DataFile, "data", envOrDefault("MATCHGRAPH_DATA", ""), "path to a match file (CSV, TSV or JSON)")
	flags.StringVar(&cfg.OutputFile, "output", envOrDefault("MATCHGRAPH_OUTPUT", ""), "path to output file (defaults to 'influence.[format]')")
	flags.StringVar(&cfg.Format, "format", envOrDefault("MATCHGRAPH_FORMAT", "svg"), "output format: svg, json, dot, ascii")

	flags.StringVar(&mode, "graph-mode", envOrDefault("MATCHGRAPH_GRAPH_MODE", graph.ModeWins.String()), "edge rule: wins, goal_difference, home_away_threshold")
	flags.IntVar(&cfg.Threshold, "threshold", envOrDefaultInt("MATCHGRAPH_THRESHOLD", graph.DefaultThreshold), "minimum wins for home_away_threshold")
	flags.StringVar(&cfg.Layout, "layout", envOrDefault("MATCHGRAPH_LAYOUT", physics.LayoutForce), "layout: force, circular")
	flags.Int64Var(&cfg.Seed, "seed", int64(envOrDefaultInt("MATCHGRAPH_SEED", int(physics.DefaultSeed))), "layout seed")
	flags.Float64Var(&cfg.Jitter, "jitter", envOrDefaultFloat("MATCHGRAPH_JITTER", 0), "layout noise in pixels")
	flags.IntVar(&cfg.MaxIterations, "iterations", envOrDefaultInt("MATCHGRAPH_ITERATIONS", 500), "maximum iterations for the layout simulation")
	flags.Float64Var(&cfg.Width, "width", envOrDefaultFloat("MATCHGRAPH_WIDTH", 1200), "width of the visualization")
	flags.Float64Var(&cfg.Height, "height", envOrDefaultFloat("MATCHGRAPH_HEIGHT", 900), "height of the visualization")
	flags.StringVar(&cfg.ColorScheme, "colors", envOrDefault("MATCHGRAPH_COLORS", "default"), "color scheme: default, dark, greens")
	flags.BoolVar(&cfg.EdgeLabels, "edge-labels", false, "print edge labels in SVG output")
	flags.BoolVar(&cfg.Timestamp, "timestamp", false, "include timestamp in SVG output")

	flags.StringVar(&cfg.From, "from", "", "first match date (YYYY-MM-DD)")
	flags.StringVar(&cfg.To, "to", "", "last match date (YYYY-MM-DD)")
	flags.StringVar(&cfg.Competition, "competition", "", "competition code")
	flags.StringVar(&cfg.Team, "team", "", "only matches involving this team")

	flags.IntVar(&cfg.Port, "port", envOrDefaultInt("MATCHGRAPH_PORT", 8080), "port for serve mode")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", envOrDefaultDuration("MATCHGRAPH_SHUTDOWN_TIMEOUT", 10*time.Second), "graceful shutdown timeout")

	flags.StringVar(&cfg.DatabaseURL, "database-url", envOrDefault("DATABASE_URL", ""), "Postgres connection string")
	flags.StringVar(&cfg.APIKey, "api-key", envOrDefault("FOOTBALL_API_KEY", ""), "football-data.org API token")
	flags.StringVar(&cfg.APIBaseURL, "api-url", envOrDefault("FOOTBALL_API_URL", ""), "football-data.org base URL")
	flags.StringVar(&competitions, "competitions", envOrDefault("MATCHGRAPH_COMPETITIONS", "PL"), "comma-separated competition codes to import")
	flags.IntVar(&cfg.Season, "season", envOrDefaultInt("MATCHGRAPH_SEASON", 0), "season start year to import (0 = current)")

	flags.StringVar(&cfg.LogFormat, "log-format", envOrDefault("MATCHGRAPH_LOG_FORMAT", "json"), "log format: json|console")
	flags.StringVar(&cfg.LogLevel, "log-level", envOrDefault("MATCHGRAPH_LOG_LEVEL", "info"), "log level: debug|info|warn|error")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.GraphMode, err = graph.ParseMode(mode); err != nil {
		return nil, err
	}
	cfg.Competitions = splitCSV(competitions)
	if cfg.OutputFile == "" {
		cfg.OutputFile = "influence." + extension(cfg.Format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combination of settings
func (c *Config) Validate() error {
	switch c.Command {
	case CommandServe:
		if c.DataFile == "" && c.DatabaseURL == "" {
			return errors.New("serve needs -data or -database-url")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.Errorf("invalid port %d", c.Port)
		}
	case CommandRender:
		if c.DataFile == "" && c.DatabaseURL == "" {
			return errors.New("render needs -data or -database-url")
		}
		if _, err := render.GetRenderer(c.Format); err != nil {
			return err
		}
	case CommandImport:
		if c.DatabaseURL == "" {
			return errors.New("import needs -database-url")
		}
		if len(c.Competitions) == 0 {
			return errors.New("import needs at least one competition")
		}
	default:
		return errors.Errorf("unknown mode %q", c.Command)
	}

	if c.GraphMode == graph.ModeHomeAwayThreshold && c.Threshold < 1 {
		return graph.ErrInvalidThreshold
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid dimensions %gx%g", c.Width, c.Height)
	}
	if _, err := physics.GetLayoutAlgorithm(c.Layout, c.Seed, c.Jitter); err != nil {
		return err
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	return nil
}

// Filter returns the dataset narrowing given by -from, -to, -competition
// and -team. The -to date is inclusive.
func (c *Config) Filter() (models.MatchFilter, error) {
	filter := models.MatchFilter{Competition: c.Competition, Team: c.Team}
	if c.From != "" {
		from, err := models.ParseDate(c.From)
		if err != nil {
			return filter, errors.Wrap(err, "-from")
		}
		filter.From = from
	}
	if c.To != "" {
		to, err := models.ParseDate(c.To)
		if err != nil {
			return filter, errors.Wrap(err, "-to")
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	return filter, nil
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "ascii":
		return "txt"
	case "":
		return "svg"
	default:
		return strings.ToLower(format)
	}
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed := 0
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed := 0.0
	if _, err := fmt.Sscanf(value, "%g", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
