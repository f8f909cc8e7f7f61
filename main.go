package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/matchgraph/config"
	"github.com/TFMV/matchgraph/graph"
	"github.com/TFMV/matchgraph/ingest"
	"github.com/TFMV/matchgraph/physics"
	"github.com/TFMV/matchgraph/render"
	"github.com/TFMV/matchgraph/server"
	"github.com/TFMV/matchgraph/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "matchgraph: %v\n", err)
		fmt.Fprintln(os.Stderr, "usage: matchgraph -mode serve|render|import [-data file] [-database-url url] [flags]")
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matchgraph: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create a context that is canceled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Command {
	case config.CommandServe:
		err = serve(ctx, cfg, logger)
	case config.CommandRender:
		err = renderOutput(ctx, cfg, logger)
	case config.CommandImport:
		err = importMatches(ctx, cfg, logger)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("mode", cfg.Command), zap.Error(err))
	}
}

// openSource loads the match file when one is given and otherwise connects
// to the database. The returned close func is never nil.
func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (server.Source, func(), error) {
	if cfg.DataFile != "" {
		frame, err := ingest.ProcessFile(cfg.DataFile)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to process input file: %w", err)
		}
		logger.Info("loaded match file", zap.String("file", cfg.DataFile), zap.Int("rows", frame.Len()))
		return ingest.NewMemorySource(frame), func() {}, nil
	}

	st, err := store.NewStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, func() {}, err
	}
	return st, func() { st.Close() }, nil
}

func newBuilder(cfg *config.Config, logger *zap.Logger) (*graph.Builder, error) {
	layout, err := physics.NewSimulation(cfg.Layout, cfg.Seed, cfg.Jitter, cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	return graph.NewBuilder(graph.Config{
		Width:         cfg.Width,
		Height:        cfg.Height,
		MaxIterations: cfg.MaxIterations,
	}, layout, logger), nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	source, closeSource, err := openSource(ctx, cfg, logger)
	defer closeSource()
	if err != nil {
		return err
	}
	builder, err := newBuilder(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:            cfg.Port,
		Width:           cfg.Width,
		Height:          cfg.Height,
		ColorScheme:     cfg.ColorScheme,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, source, builder, logger)
	return srv.Start(ctx)
}

func renderOutput(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	source, closeSource, err := openSource(ctx, cfg, logger)
	defer closeSource()
	if err != nil {
		return err
	}
	builder, err := newBuilder(cfg, logger)
	if err != nil {
		return err
	}

	filter, err := cfg.Filter()
	if err != nil {
		return err
	}
	frame, err := source.Frame(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load matches: %w", err)
	}

	res := builder.Build(frame, cfg.GraphMode, cfg.Threshold)
	if !res.OK() {
		logger.Warn("no graph to draw", zap.Stringer("status", res.Status), zap.String("message", res.Message))
	}

	options := render.NewDefaultOptions(cfg.Format)
	options.Width = cfg.Width
	options.Height = cfg.Height
	options.ColorScheme = cfg.ColorScheme
	options.ShowEdgeLabels = cfg.EdgeLabels
	options.Timestamp = cfg.Timestamp
	output, err := render.Generate(res, options)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.OutputFile, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	logger.Info("processing complete", zap.String("output", cfg.OutputFile), zap.Stringer("status", res.Status))
	return nil
}

func importMatches(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := store.NewStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	client := ingest.NewAPIClient(cfg.APIBaseURL, cfg.APIKey, logger)
	total := 0
	for _, code := range cfg.Competitions {
		matches, err := client.CompetitionMatches(ctx, code, cfg.Season)
		if err != nil {
			return fmt.Errorf("importing %s: %w", code, err)
		}
		stored, err := st.UpsertMatches(ctx, matches)
		if err != nil {
			return fmt.Errorf("storing %s: %w", code, err)
		}
		total += stored
	}

	logger.Info("import complete", zap.Strings("competitions", cfg.Competitions), zap.Int("stored", total))
	return nil
}
