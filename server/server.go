// Package server exposes the influence graph and match KPIs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/matchgraph/graph"
	"github.com/TFMV/matchgraph/models"
	"github.com/TFMV/matchgraph/render"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Source provides the match dataset. Both the in-memory file source and the
// Postgres store satisfy it.
type Source interface {
	Frame(ctx context.Context, filter models.MatchFilter) (*models.Frame, error)
	Teams(ctx context.Context) ([]string, error)
	Competitions(ctx context.Context) ([]string, error)
}

// Config for the server
type Config struct {
	Port            int
	Width           float64
	Height          float64
	ColorScheme     string
	ShutdownTimeout time.Duration
}

// Server serves the dashboard and its JSON API
type Server struct {
	cfg     Config
	source  Source
	builder *graph.Builder
	logger  *zap.Logger
	router  *mux.Router
}

// New wires the routes. A nil logger discards output.
func New(cfg Config, source Source, builder *graph.Builder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1200, 900
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		source:  source,
		builder: builder,
		logger:  logger.Named("server"),
		router:  mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/api/graph", s.handleAPIGraph).Methods(http.MethodGet)
	s.router.HandleFunc("/graph.{format:svg|dot|txt|json}", s.handleGraphFile).Methods(http.MethodGet)
	s.router.HandleFunc("/api/kpis", s.handleKPIs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/matches", s.handleMatches).Methods(http.MethodGet)
	s.router.HandleFunc("/api/teams", s.handleTeams).Methods(http.MethodGet)
	s.router.HandleFunc("/api/competitions", s.handleCompetitions).Methods(http.MethodGet)
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.Int("port", s.cfg.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// graphQuery is the parsed form of the dashboard controls
type graphQuery struct {
	mode      graph.Mode
	threshold int
	filter    models.MatchFilter
}

func parseFilter(r *http.Request) (models.MatchFilter, error) {
	q := r.URL.Query()
	filter := models.MatchFilter{
		Competition: strings.TrimSpace(q.Get("competition")),
		Team:        strings.TrimSpace(q.Get("team")),
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := models.ParseDate(v)
		if err != nil {
			return filter, errors.Wrap(err, "from")
		}
		filter.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := models.ParseDate(v)
		if err != nil {
			return filter, errors.Wrap(err, "to")
		}
		// a plain date includes the whole day
		if len(v) == len(models.DateLayout) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = to
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("to is before from")
	}
	return filter, nil
}

func parseGraphQuery(r *http.Request) (graphQuery, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return graphQuery{}, err
	}
	q := r.URL.Query()
	mode, err := graph.ParseMode(q.Get("mode"))
	if err != nil {
		return graphQuery{}, err
	}
	threshold := graph.DefaultThreshold
	if v := strings.TrimSpace(q.Get("threshold")); v != "" {
		if threshold, err = strconv.Atoi(v); err != nil {
			return graphQuery{}, errors.Wrap(err, "threshold")
		}
	}
	return graphQuery{mode: mode, threshold: threshold, filter: filter}, nil
}

// build loads the filtered dataset and constructs its graph
func (s *Server) build(r *http.Request) (graph.Result, bool, error) {
	gq, err := parseGraphQuery(r)
	if err != nil {
		return graph.Result{}, true, err
	}
	frame, err := s.source.Frame(r.Context(), gq.filter)
	if err != nil {
		return graph.Result{}, false, err
	}
	return s.builder.Build(frame, gq.mode, gq.threshold), false, nil
}

func (s *Server) options(format string) *render.OutputOptions {
	options := render.NewDefaultOptions(format)
	options.Width = s.cfg.Width
	options.Height = s.cfg.Height
	if s.cfg.ColorScheme != "" {
		options.ColorScheme = s.cfg.ColorScheme
	}
	return options
}

func (s *Server) handleAPIGraph(w http.ResponseWriter, r *http.Request) {
	res, badRequest, err := s.build(r)
	if err != nil {
		s.fail(w, r, badRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, render.NewFigure(res, s.options("json")))
}

func (s *Server) handleGraphFile(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	res, badRequest, err := s.build(r)
	if err != nil {
		s.fail(w, r, badRequest, err)
		return
	}

	renderer, err := render.GetRenderer(format)
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	options := s.options(format)
	output, err := renderer.Render(render.NewFigure(res, options), options)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.logger.Debug("rendered graph",
		zap.String("renderer", renderer.Name()),
		zap.Stringer("status", res.Status),
		zap.Int("bytes", len(output)))
	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("X-Graph-Status", res.Status.String())
	_, _ = w.Write(output)
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) ([]models.Match, bool) {
	filter, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, true, err)
		return nil, false
	}
	frame, err := s.source.Frame(r.Context(), filter)
	if err != nil {
		s.fail(w, r, false, err)
		return nil, false
	}
	matches, err := frame.Matches()
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	return matches, true
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	matches, ok := s.matches(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, models.Summarize(matches))
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, ok := s.matches(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.source.Teams(r.Context())
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleCompetitions(w http.ResponseWriter, r *http.Request) {
	comps, err := s.source.Competitions(r.Context())
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.writeJSON(w, http.StatusOK, comps)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, badRequest bool, err error) {
	if badRequest {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
