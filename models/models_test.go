package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Match {
	day := func(s string) time.Time {
		t, _ := time.Parse(DateLayout, s)
		return t
	}
	return []Match{
		{MatchRecord: MatchRecord{HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeScore: 2, AwayScore: 1, Result: ResultHome},
			Date: day("2024-01-10"), Competition: "PL", PossessionHome: 55, PossessionAway: 45, ShotsOnTargetHome: 6, ShotsOnTargetAway: 3},
		{MatchRecord: MatchRecord{HomeTeam: "Chelsea", AwayTeam: "Liverpool", HomeScore: 0, AwayScore: 0, Result: ResultDraw},
			Date: day("2024-02-01"), Competition: "PL", PossessionHome: 50, PossessionAway: 50, ShotsOnTargetHome: 2, ShotsOnTargetAway: 2},
		{MatchRecord: MatchRecord{HomeTeam: "Sevilla", AwayTeam: "Arsenal", HomeScore: 1, AwayScore: 3, Result: ResultAway},
			Date: day("2024-03-05"), Competition: "CL", PossessionHome: 40, PossessionAway: 60, ShotsOnTargetHome: 1, ShotsOnTargetAway: 7},
	}
}

func TestFrameRoundTripsMatches(t *testing.T) {
	in := sample()
	f := FrameFromMatches(in)
	require.Equal(t, MatchColumns, f.Columns)
	require.Equal(t, 3, f.Len())

	out, err := f.Matches()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFrameNormalizesHeaders(t *testing.T) {
	f := NewFrame([]string{" Home_Team", "AWAY_TEAM "}, [][]string{{"A", "B"}})
	assert.Equal(t, 0, f.Index(ColHomeTeam))
	assert.Equal(t, 1, f.Index(ColAwayTeam))
	assert.Equal(t, []string{ColHomeScore}, f.MissingColumns(ColHomeTeam, ColHomeScore))

	v, ok := f.Value(0, ColAwayTeam)
	assert.True(t, ok)
	assert.Equal(t, "B", v)

	_, ok = f.Value(3, ColAwayTeam)
	assert.False(t, ok)
}

func TestFrameLiteralWithoutIndex(t *testing.T) {
	f := &Frame{Columns: []string{"home_team", "home_score"}, Rows: [][]string{{"A", " 4 "}}}
	n, err := f.Int(0, ColHomeScore)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestFrameMatchErrors(t *testing.T) {
	f := NewFrame([]string{"home_team", "away_team", "home_score", "match_date"},
		[][]string{{"A", "B", "x", ""}, {"A", "B", "1", "10/01/2024"}})
	_, err := f.Match(0)
	assert.Error(t, err)
	_, err = f.Match(1)
	assert.Error(t, err)
}

func TestFrameFilter(t *testing.T) {
	f := FrameFromMatches(sample())
	from, _ := time.Parse(DateLayout, "2024-01-15")

	assert.Equal(t, 2, f.Filter(MatchFilter{From: from}).Len())
	assert.Equal(t, 1, f.Filter(MatchFilter{Competition: "cl"}).Len())
	assert.Equal(t, 2, f.Filter(MatchFilter{Team: "Arsenal"}).Len())
	assert.Equal(t, 0, f.Filter(MatchFilter{Team: "Arsenal", Competition: "PL", From: from}).Len())
	assert.Same(t, f, f.Filter(MatchFilter{}))
}

func TestParseResult(t *testing.T) {
	for in, want := range map[string]Result{
		"HOME_TEAM": ResultHome, "h": ResultHome, "Away": ResultAway, "DRAW": ResultDraw, "x": ResultDraw,
	} {
		got, ok := ParseResult(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseResult("abandoned")
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	k := Summarize(sample())
	assert.Equal(t, 3, k.Matches)
	assert.Equal(t, 7, k.Goals)
	assert.Equal(t, 2.33, k.GoalsPerMatch)
	assert.Equal(t, 33.33, k.HomeWinRate)
	assert.Equal(t, 33.33, k.AwayWinRate)
	assert.Equal(t, 33.33, k.DrawRate)
	assert.Equal(t, 48.33, k.AvgPossessionHome)
	assert.Equal(t, 7.0, k.AvgShotsOnTarget)
	assert.Equal(t, 4, k.Teams)

	assert.Equal(t, KPIs{}, Summarize(nil))
}

func TestSummarizeSkipsUnreportedStats(t *testing.T) {
	matches := sample()
	// imported results carry scores only
	matches = append(matches, Match{MatchRecord: MatchRecord{HomeTeam: "Arsenal", AwayTeam: "Sevilla", HomeScore: 1, AwayScore: 0}})

	k := Summarize(matches)
	assert.Equal(t, 4, k.Matches)
	assert.Equal(t, 48.33, k.AvgPossessionHome)
	assert.Equal(t, 51.67, k.AvgPossessionAway)
	assert.Equal(t, 7.0, k.AvgShotsOnTarget)
	assert.Equal(t, 50.0, k.HomeWinRate)

	k = Summarize(matches[3:])
	assert.Zero(t, k.AvgPossessionHome)
	assert.Zero(t, k.AvgShotsOnTarget)
	assert.Equal(t, 100.0, k.HomeWinRate)
}

func TestGraphOperations(t *testing.T) {
	g := NewGraph("ops")
	for _, id := range []string{"A", "B", "C", "D"} {
		g.AddNode(NewNode(id))
	}
	require.NoError(t, g.AddEdge(NewEdge("A", "B", 2)))
	require.NoError(t, g.AddEdge(NewEdge("C", "B", 3)))
	assert.Error(t, g.AddEdge(NewEdge("A", "A", 1)))
	assert.Error(t, g.AddEdge(NewEdge("A", "Z", 1)))
	assert.Error(t, g.AddEdge(NewEdge("A", "C", 0)))

	assert.Equal(t, 5.0, g.WeightedInDegree("B"))
	edge, err := g.FindEdge("C", "B")
	require.NoError(t, err)
	assert.Equal(t, "C->B", edge.ID)
	_, err = g.FindEdge("B", "C")
	assert.Error(t, err)
	assert.Equal(t, 3.0, g.MaxWeight())

	assert.Equal(t, 1, g.RemoveIsolated())
	assert.False(t, g.HasNode("D"))
	for i, n := range g.Nodes {
		assert.Equal(t, int64(i+1), n.NodeID)
	}

	assert.Equal(t, 1.0, NewGraph("empty").MaxWeight())
}
