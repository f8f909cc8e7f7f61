package models

import (
	"strings"
	"time"
)

// Result classifies a completed match
type Result string

const (
	ResultHome Result = "Home"
	ResultAway Result = "Away"
	ResultDraw Result = "Draw"
)

// ParseResult accepts the spellings used by data files and the
// football-data.org API. The second return value is false for anything else.
func ParseResult(s string) (Result, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOME", "H", "HOME_TEAM", "1":
		return ResultHome, true
	case "AWAY", "A", "AWAY_TEAM", "2":
		return ResultAway, true
	case "DRAW", "D", "X":
		return ResultDraw, true
	}
	return "", false
}

// ResultFromScore derives the result from a final score
func ResultFromScore(home, away int) Result {
	switch {
	case home > away:
		return ResultHome
	case away > home:
		return ResultAway
	default:
		return ResultDraw
	}
}

// MatchRecord is the part of a match the influence graph is built from
type MatchRecord struct {
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Result    Result `json:"result"`
}

// Winner returns the winning and losing team, or ok=false for a draw.
func (m MatchRecord) Winner() (winner, loser string, ok bool) {
	switch {
	case m.HomeScore > m.AwayScore:
		return m.HomeTeam, m.AwayTeam, true
	case m.AwayScore > m.HomeScore:
		return m.AwayTeam, m.HomeTeam, true
	default:
		return "", "", false
	}
}

// Match is one row of the dashboard dataset
type Match struct {
	ID int64 `json:"id"`
	MatchRecord
	Date              time.Time `json:"match_date"`
	Competition       string    `json:"competition"`
	PossessionHome    float64   `json:"possession_home"`
	PossessionAway    float64   `json:"possession_away"`
	ShotsOnTargetHome int       `json:"shots_on_target_home"`
	ShotsOnTargetAway int       `json:"shots_on_target_away"`
}

// MatchFilter narrows a dataset the way the dashboard controls do.
// Zero values disable the corresponding condition.
type MatchFilter struct {
	From        time.Time
	To          time.Time
	Competition string
	Team        string
}

// Matches reports whether m passes the filter
func (f MatchFilter) Matches(m Match) bool {
	if !f.From.IsZero() && !m.Date.IsZero() && m.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !m.Date.IsZero() && m.Date.After(f.To) {
		return false
	}
	if f.Competition != "" && !strings.EqualFold(f.Competition, m.Competition) {
		return false
	}
	if f.Team != "" && f.Team != m.HomeTeam && f.Team != m.AwayTeam {
		return false
	}
	return true
}

// IsZero reports whether the filter lets everything through
func (f MatchFilter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() && f.Competition == "" && f.Team == ""
}
