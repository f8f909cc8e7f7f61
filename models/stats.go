package models

import "math"

// KPIs are the headline numbers shown above the dashboard charts
type KPIs struct {
	Matches           int     `json:"matches"`
	Goals             int     `json:"goals"`
	GoalsPerMatch     float64 `json:"goals_per_match"`
	HomeWinRate       float64 `json:"home_win_rate"`
	AwayWinRate       float64 `json:"away_win_rate"`
	DrawRate          float64 `json:"draw_rate"`
	AvgPossessionHome float64 `json:"avg_possession_home,omitempty"`
	AvgPossessionAway float64 `json:"avg_possession_away,omitempty"`
	AvgShotsOnTarget  float64 `json:"avg_shots_on_target,omitempty"`
	Teams             int     `json:"teams"`
}

// Summarize computes KPIs over a set of matches. Rates are percentages
// rounded to two decimals. Possession and shot averages only count matches
// that report them, and stay zero when none do.
func Summarize(matches []Match) KPIs {
	k := KPIs{Matches: len(matches)}
	if len(matches) == 0 {
		return k
	}

	teams := make(map[string]struct{})
	var home, away, draw, shots, withShots, withPossession int
	var possHome, possAway float64
	for _, m := range matches {
		teams[m.HomeTeam] = struct{}{}
		teams[m.AwayTeam] = struct{}{}
		k.Goals += m.HomeScore + m.AwayScore
		if m.ShotsOnTargetHome > 0 || m.ShotsOnTargetAway > 0 {
			withShots++
			shots += m.ShotsOnTargetHome + m.ShotsOnTargetAway
		}
		if m.PossessionHome > 0 || m.PossessionAway > 0 {
			withPossession++
			possHome += m.PossessionHome
			possAway += m.PossessionAway
		}

		switch ResultFromScore(m.HomeScore, m.AwayScore) {
		case ResultHome:
			home++
		case ResultAway:
			away++
		default:
			draw++
		}
	}

	n := float64(len(matches))
	k.Teams = len(teams)
	k.GoalsPerMatch = round2(float64(k.Goals) / n)
	k.HomeWinRate = round2(float64(home) / n * 100)
	k.AwayWinRate = round2(float64(away) / n * 100)
	k.DrawRate = round2(float64(draw) / n * 100)
	if withPossession > 0 {
		k.AvgPossessionHome = round2(possHome / float64(withPossession))
		k.AvgPossessionAway = round2(possAway / float64(withPossession))
	}
	if withShots > 0 {
		k.AvgShotsOnTarget = round2(float64(shots) / float64(withShots))
	}
	return k
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
