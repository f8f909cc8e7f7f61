package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/TFMV/matchgraph/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestBuildMatchQueryWithoutFilter(t *testing.T) {
	q, args := buildMatchQuery(models.MatchFilter{})
	assert.NotContains(t, q, "WHERE")
	assert.Contains(t, q, "ORDER BY f.date_id, f.id")
	assert.Empty(t, args)
}

func TestBuildMatchQueryWithFilter(t *testing.T) {
	q, args := buildMatchQuery(models.MatchFilter{
		From:        date("2024-01-01"),
		To:          date("2024-05-31"),
		Competition: "pl",
		Team:        "Arsenal",
	})
	assert.Contains(t, q, "f.date_id >= $1")
	assert.Contains(t, q, "f.date_id <= $2")
	assert.Contains(t, q, "UPPER(c.code) = UPPER($3)")
	assert.Contains(t, q, "(h.name = $4 OR a.name = $4)")
	assert.Equal(t, []interface{}{20240101, 20240531, "pl", "Arsenal"}, args)
}

func TestBuildMatchQueryNumbersArgumentsInOrder(t *testing.T) {
	q, args := buildMatchQuery(models.MatchFilter{Team: "Chelsea"})
	assert.Contains(t, q, "(h.name = $1 OR a.name = $1)")
	assert.Equal(t, []interface{}{"Chelsea"}, args)
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, 20240229, dateKey(date("2024-02-29")))
	assert.Equal(t, 19991231, dateKey(time.Date(1999, 12, 31, 23, 0, 0, 0, time.UTC)))
}

// TestStoreRoundTrip needs a disposable database, e.g.
// MATCHGRAPH_TEST_DATABASE_URL=postgres://localhost/matchgraph_test?sslmode=disable
func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("MATCHGRAPH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MATCHGRAPH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := NewStore(ctx, url, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	in := []models.Match{
		{ID: 11, MatchRecord: models.MatchRecord{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeScore: 2, AwayScore: 1, Result: models.ResultHome},
			Date: date("2024-01-10"), Competition: "PL"},
		{MatchRecord: models.MatchRecord{HomeTeam: "Chelsea", AwayTeam: "Arsenal", HomeScore: 0, AwayScore: 0},
			Date: date("2024-03-10"), Competition: "PL"},
		{MatchRecord: models.MatchRecord{HomeTeam: "Undated", AwayTeam: "Arsenal"}},
	}
	stored, err := s.UpsertMatches(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	// upserting again overwrites rather than duplicates
	_, err = s.UpsertMatches(ctx, in)
	require.NoError(t, err)

	matches, err := s.Matches(ctx, models.MatchFilter{Team: "Arsenal", To: date("2024-02-01")})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(11), matches[0].ID)
	assert.Equal(t, models.ResultHome, matches[0].Result)

	frame, err := s.Frame(ctx, models.MatchFilter{Competition: "pl"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, frame.Len(), 2)

	teams, err := s.Teams(ctx)
	require.NoError(t, err)
	assert.Contains(t, teams, "Chelsea")
	assert.NotContains(t, teams, "Undated")
}
