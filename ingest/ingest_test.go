package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVProcessorNormalizesHeaders(t *testing.T) {
	data := []byte("\ufeffDate,HomeTeam,AwayTeam,FTHG,FTAG,FTR,Div\n" +
		"2024-01-10,Arsenal,Chelsea,2,1,H,E0\n" +
		",,,,,,\n" +
		"2024-01-11,Everton,Fulham,0,0,D,E0\n")

	frame, err := NewCSVProcessor(0).ProcessData(data)
	require.NoError(t, err)
	assert.Equal(t, []string{
		models.ColMatchDate, models.ColHomeTeam, models.ColAwayTeam,
		models.ColHomeScore, models.ColAwayScore, models.ColResult, models.ColCompetition,
	}, frame.Columns)
	require.Equal(t, 2, frame.Len())

	m, err := frame.Match(0)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal", m.HomeTeam)
	assert.Equal(t, 2, m.HomeScore)
	assert.Equal(t, models.ResultHome, m.Result)
	assert.Equal(t, "E0", m.Competition)
}

func TestCSVProcessorKeepsMissingColumnsMissing(t *testing.T) {
	frame, err := NewCSVProcessor(',').ProcessData([]byte("home_team,away_team\nA,B\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{models.ColHomeScore}, frame.MissingColumns(models.ColHomeScore))

	frame, err = NewCSVProcessor(',').ProcessData(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Len())
}

func TestTSVProcessor(t *testing.T) {
	p, err := GetProcessor(".tsv")
	require.NoError(t, err)
	frame, err := p.ProcessData([]byte("home\taway\thome_goals\taway_goals\nA\tB\t1\t0\n"))
	require.NoError(t, err)
	m, err := frame.Match(0)
	require.NoError(t, err)
	assert.Equal(t, models.MatchRecord{HomeTeam: "A", AwayTeam: "B", HomeScore: 1, Result: models.ResultHome}, m.MatchRecord)
}

func TestJSONProcessorArrayAndWrapper(t *testing.T) {
	array := []byte(`[
		{"home_team": "A", "away_team": "B", "home_score": 3, "away_score": 1, "venue": "X"},
		{"home_team": "B", "away_team": "A", "home_score": 0, "away_score": 0, "result": null}
	]`)
	frame, err := NewJSONProcessor().ProcessData(array)
	require.NoError(t, err)
	assert.Equal(t, []string{models.ColHomeTeam, models.ColAwayTeam, models.ColHomeScore, models.ColAwayScore, models.ColResult, "venue"}, frame.Columns)
	require.Equal(t, 2, frame.Len())
	n, err := frame.Int(0, models.ColHomeScore)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	wrapped, err := NewJSONProcessor().ProcessData([]byte(`{"matches": [{"HomeTeam": "A", "AwayTeam": "B", "FTHG": 1, "FTAG": 2}]}`))
	require.NoError(t, err)
	m, err := wrapped.Match(0)
	require.NoError(t, err)
	assert.Equal(t, models.ResultAway, m.Result)

	_, err = NewJSONProcessor().ProcessData([]byte(`[{"home_team": {"name": "A"}}]`))
	assert.Error(t, err)
}

func TestJSONProcessorPrefersCanonicalKey(t *testing.T) {
	data := []byte(`[{"home": "Alias", "home_team": "Arsenal", "HomeTeam": "Other", "away_team": "B", "away": "Z", "home_score": 1, "away_score": 0}]`)
	for i := 0; i < 20; i++ {
		frame, err := NewJSONProcessor().ProcessData(data)
		require.NoError(t, err)
		home, _ := frame.Value(0, models.ColHomeTeam)
		away, _ := frame.Value(0, models.ColAwayTeam)
		assert.Equal(t, "Arsenal", home)
		assert.Equal(t, "B", away)
	}

	// without the canonical key the alias that sorts first wins
	frame, err := NewJSONProcessor().ProcessData([]byte(`[{"hometeam": "Y", "home": "X"}]`))
	require.NoError(t, err)
	home, _ := frame.Value(0, models.ColHomeTeam)
	assert.Equal(t, "X", home)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matches.csv")
	require.NoError(t, os.WriteFile(path, []byte("home_team,away_team,home_score,away_score\nA,B,1,0\n"), 0o644))

	frame, err := ProcessFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Len())

	_, err = ProcessFile(filepath.Join(dir, "matches.xlsx"))
	assert.Error(t, err)
	_, err = ProcessFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := models.ParseDate(s)
		return d
	}
	src := NewMemorySource(models.FrameFromMatches([]models.Match{
		{MatchRecord: models.MatchRecord{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeScore: 1}, Competition: "PL", Date: day("2024-01-01")},
		{MatchRecord: models.MatchRecord{HomeTeam: "Sevilla", AwayTeam: "Arsenal", AwayScore: 2}, Competition: "CL", Date: day("2024-02-01")},
	}))
	ctx := context.Background()

	frame, err := src.Frame(ctx, models.MatchFilter{Competition: "cl"})
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Len())

	teams, err := src.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arsenal", "Chelsea", "Sevilla"}, teams)

	comps, err := src.Competitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CL", "PL"}, comps)
}

const matchesPayload = `{
	"resultSet": {"count": 3},
	"matches": [
		{"id": 1, "utcDate": "2024-01-10T20:00:00Z", "status": "FINISHED",
		 "competition": {"code": "PL"},
		 "homeTeam": {"name": "Arsenal FC"}, "awayTeam": {"name": "Chelsea FC"},
		 "score": {"winner": "HOME_TEAM", "fullTime": {"home": 2, "away": 1}}},
		{"id": 2, "utcDate": "2024-01-11T20:00:00Z", "status": "FINISHED",
		 "competition": {"code": "PL"},
		 "homeTeam": {"name": "Everton FC"}, "awayTeam": {"name": "Fulham FC"},
		 "score": {"winner": "DRAW", "fullTime": {"home": 0, "away": 0}}},
		{"id": 3, "utcDate": "2024-01-12T20:00:00Z", "status": "POSTPONED",
		 "competition": {"code": "PL"},
		 "homeTeam": {"name": "Luton Town FC"}, "awayTeam": {"name": "Burnley FC"},
		 "score": {"winner": null, "fullTime": {"home": null, "away": null}}}
	]
}`

func testClient(url string) *APIClient {
	c := NewAPIClient(url, "secret", nil)
	c.backoff = time.Millisecond
	return c
}

func TestAPIClientCompetitionMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/competitions/PL/matches", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "FINISHED", r.URL.Query().Get("status"))
		assert.Equal(t, "2023", r.URL.Query().Get("season"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(matchesPayload))
	}))
	defer srv.Close()

	matches, err := testClient(srv.URL).CompetitionMatches(context.Background(), "pl", 2023)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, int64(1), matches[0].ID)
	assert.Equal(t, models.MatchRecord{
		HomeTeam: "Arsenal FC", AwayTeam: "Chelsea FC", HomeScore: 2, AwayScore: 1, Result: models.ResultHome,
	}, matches[0].MatchRecord)
	assert.Equal(t, "PL", matches[0].Competition)
	assert.Equal(t, 2024, matches[0].Date.Year())
	assert.Equal(t, models.ResultDraw, matches[1].Result)
}

func TestAPIClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(matchesPayload))
	}))
	defer srv.Close()

	matches, err := testClient(srv.URL).CompetitionMatches(context.Background(), "PL", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAPIClientGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CompetitionMatches(context.Background(), "PL", 0)
	require.Error(t, err)
	assert.Equal(t, int32(defaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestAPIClientUnauthorizedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CompetitionMatches(context.Background(), "PL", 0)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAPIClientPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`{"matches": [
				{"id": 1, "status": "FINISHED", "homeTeam": {"name": "A"}, "awayTeam": {"name": "B"}, "score": {"fullTime": {"home": 1, "away": 0}}},
				{"id": 2, "status": "FINISHED", "homeTeam": {"name": "B"}, "awayTeam": {"name": "A"}, "score": {"fullTime": {"home": 1, "away": 0}}}
			]}`))
		default:
			_, _ = w.Write([]byte(`{"matches": [
				{"id": 3, "status": "FINISHED", "homeTeam": {"name": "C"}, "awayTeam": {"name": "A"}, "score": {"fullTime": {"home": 0, "away": 3}}}
			]}`))
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.pageSize = 2
	matches, err := c.CompetitionMatches(context.Background(), "SA", 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "SA", matches[2].Competition)
	assert.Equal(t, models.ResultAway, matches[2].Result)
}

func TestAPIClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.CompetitionMatches(ctx, "PL", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
