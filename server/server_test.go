package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TFMV/matchgraph/graph"
	"github.com/TFMV/matchgraph/ingest"
	"github.com/TFMV/matchgraph/models"
	"github.com/TFMV/matchgraph/render"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func match(date, comp, home, away string, hs, as int) models.Match {
	return models.Match{
		MatchRecord: models.MatchRecord{HomeTeam: home, AwayTeam: away, HomeScore: hs, AwayScore: as},
		Date:        day(date),
		Competition: comp,
	}
}

func newTestServer(src Source) *httptest.Server {
	builder := graph.NewBuilder(graph.Config{Width: 600, Height: 400, MaxIterations: 50}, nil, nil)
	return httptest.NewServer(New(Config{Width: 600, Height: 400}, src, builder, nil).Handler())
}

func fixture() *ingest.MemorySource {
	return ingest.NewMemorySource(models.FrameFromMatches([]models.Match{
		match("2024-01-10", "PL", "Arsenal", "Chelsea", 2, 0),
		match("2024-02-10", "PL", "Arsenal", "Chelsea", 1, 0),
		match("2024-03-10", "PL", "Liverpool", "Chelsea", 3, 1),
		match("2024-03-20", "CL", "Chelsea", "Sevilla", 0, 0),
	}))
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestAPIGraph(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	resp, body := get(t, srv, "/api/graph")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fig render.Figure
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, "ok", fig.Status)
	assert.Equal(t, "wins", fig.Mode)
	require.Len(t, fig.Edges, 2)
	assert.Len(t, fig.Nodes, 3, "Sevilla only drew and is dropped")
	for _, e := range fig.Edges {
		if e.Source == "Arsenal" {
			assert.Equal(t, 2.0, e.Weight)
			assert.Equal(t, 3.0, e.Width)
		}
	}
}

func TestAPIGraphAppliesFilters(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	_, body := get(t, srv, "/api/graph?from=2024-02-01&to=2024-02-10")
	var fig render.Figure
	require.NoError(t, json.Unmarshal(body, &fig))
	require.Len(t, fig.Edges, 1)
	assert.Equal(t, 1.0, fig.Edges[0].Weight)

	_, body = get(t, srv, "/api/graph?competition=cl")
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, "no_significant_relationships", fig.Status)
	assert.Equal(t, graph.MessageNoSignificantRelationships, fig.Message)

	_, body = get(t, srv, "/api/graph?team=Nobody")
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, graph.MessageInsufficientData, fig.Message)
}

func TestAPIGraphModes(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	var fig render.Figure
	_, body := get(t, srv, "/api/graph?mode=gd")
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, "goal_difference", fig.Mode)
	for _, e := range fig.Edges {
		if e.Source == "Arsenal" {
			assert.Equal(t, 3.0, e.Weight)
		}
	}

	_, body = get(t, srv, "/api/graph?mode=home_away_threshold&threshold=2")
	require.NoError(t, json.Unmarshal(body, &fig))
	require.Len(t, fig.Edges, 1)
	assert.Equal(t, "Arsenal", fig.Edges[0].Source)

	_, body = get(t, srv, "/api/graph?mode=home_away_threshold&threshold=0")
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, graph.MessageConstructionFailure, fig.Message)
}

func TestBadQueries(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	for _, path := range []string{
		"/api/graph?mode=elo",
		"/api/graph?threshold=many",
		"/api/graph?from=10/01/2024",
		"/api/graph?from=2024-03-01&to=2024-01-01",
		"/api/kpis?to=yesterday",
	} {
		resp, body := get(t, srv, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, string(body), `"error"`, path)
	}
}

func TestGraphFiles(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	resp, body := get(t, srv, "/graph.svg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", resp.Header.Get("X-Graph-Status"))
	assert.Contains(t, string(body), "<svg")

	resp, body = get(t, srv, "/graph.dot?competition=CL")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no_significant_relationships", resp.Header.Get("X-Graph-Status"))
	assert.Contains(t, string(body), graph.MessageNoSignificantRelationships)

	resp, _ = get(t, srv, "/graph.txt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv, "/graph.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKPIsAndMatches(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	_, body := get(t, srv, "/api/kpis?competition=PL")
	var k models.KPIs
	require.NoError(t, json.Unmarshal(body, &k))
	assert.Equal(t, 3, k.Matches)
	assert.Equal(t, 7, k.Goals)
	assert.Equal(t, 100.0, k.HomeWinRate)

	_, body = get(t, srv, "/api/matches?team=Sevilla")
	var matches []models.Match
	require.NoError(t, json.Unmarshal(body, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "CL", matches[0].Competition)
}

func TestKPIsRejectUndecodableRows(t *testing.T) {
	src := ingest.NewMemorySource(models.NewFrame(
		[]string{models.ColHomeTeam, models.ColAwayTeam, models.ColHomeScore, models.ColAwayScore},
		[][]string{{"A", "B", "two", "0"}},
	))
	srv := newTestServer(src)
	defer srv.Close()

	resp, _ := get(t, srv, "/api/kpis")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// the graph endpoint reports the same rows as a construction failure
	_, body := get(t, srv, "/api/graph")
	var fig render.Figure
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Equal(t, graph.MessageConstructionFailure, fig.Message)
}

func TestTeamsAndCompetitions(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	var names []string
	_, body := get(t, srv, "/api/teams")
	require.NoError(t, json.Unmarshal(body, &names))
	assert.Equal(t, []string{"Arsenal", "Chelsea", "Liverpool", "Sevilla"}, names)

	_, body = get(t, srv, "/api/competitions")
	require.NoError(t, json.Unmarshal(body, &names))
	assert.Equal(t, []string{"CL", "PL"}, names)
}

func TestIndex(t *testing.T) {
	srv := newTestServer(fixture())
	defer srv.Close()

	resp, body := get(t, srv, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, `<option value="goal_difference">`)
	assert.Contains(t, page, `src="/graph.svg"`)
	assert.Contains(t, page, `<table id="matches">`)
	assert.Contains(t, page, `'/api/matches?'`)
}

type failingSource struct{}

func (failingSource) Frame(context.Context, models.MatchFilter) (*models.Frame, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Teams(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Competitions(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestSourceFailuresAreInternalErrors(t *testing.T) {
	srv := newTestServer(failingSource{})
	defer srv.Close()

	for _, path := range []string{"/api/graph", "/graph.svg", "/api/kpis", "/api/teams", "/api/competitions"} {
		resp, body := get(t, srv, path)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.NotContains(t, string(body), "connection refused", path)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	builder := graph.NewBuilder(graph.DefaultConfig(), nil, nil)
	s := New(Config{Port: 0, ShutdownTimeout: time.Second}, fixture(), builder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
