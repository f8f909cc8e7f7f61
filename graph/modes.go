package graph

import (
	"fmt"
	"sort"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type pair struct {
	source, target string
}

// tally accumulates everything that lands on one ordered pair
type tally struct {
	weight   float64
	wins     int
	margin   int
	homeWins int
	awayWins int
}

func (t *tally) label(mode Mode) string {
	switch mode {
	case ModeWins:
		if t.wins == 1 {
			return "1 win"
		}
		return fmt.Sprintf("%d wins", t.wins)
	case ModeGoalDifference:
		return fmt.Sprintf("+%d", t.margin)
	case ModeHomeAwayThreshold:
		switch {
		case t.homeWins > 0 && t.awayWins > 0:
			return fmt.Sprintf("%d home + %d away wins", t.homeWins, t.awayWins)
		case t.awayWins > 0:
			return fmt.Sprintf("%d away wins", t.awayWins)
		default:
			return fmt.Sprintf("%d home wins", t.homeWins)
		}
	}
	return ""
}

// readRecords decodes the required columns of every row. A row whose team
// plays itself cannot form an edge and is skipped.
func readRecords(frame *models.Frame, logger *zap.Logger) ([]models.MatchRecord, error) {
	records := make([]models.MatchRecord, 0, frame.Len())
	for i := 0; i < frame.Len(); i++ {
		home, _ := frame.Value(i, models.ColHomeTeam)
		away, _ := frame.Value(i, models.ColAwayTeam)
		if home == "" || away == "" {
			return nil, errors.Wrapf(ErrMalformedRow, "row %d: empty team name", i)
		}
		if home == away {
			logger.Debug("skipping self match", zap.Int("row", i), zap.String("team", home))
			continue
		}

		homeScore, err := frame.Int(i, models.ColHomeScore)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedRow, err.Error())
		}
		awayScore, err := frame.Int(i, models.ColAwayScore)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedRow, err.Error())
		}
		if homeScore < 0 || awayScore < 0 {
			return nil, errors.Wrapf(ErrMalformedRow, "row %d: negative score %d-%d", i, homeScore, awayScore)
		}

		result := models.ResultFromScore(homeScore, awayScore)
		if v, ok := frame.Value(i, models.ColResult); ok {
			if r, ok := models.ParseResult(v); ok {
				result = r
			}
		}

		records = append(records, models.MatchRecord{
			HomeTeam:  home,
			AwayTeam:  away,
			HomeScore: homeScore,
			AwayScore: awayScore,
			Result:    result,
		})
	}
	return records, nil
}

// aggregate folds records into one tally per ordered pair
func aggregate(records []models.MatchRecord, mode Mode, threshold int) (map[pair]*tally, error) {
	switch mode {
	case ModeWins:
		return aggregateWins(records), nil
	case ModeGoalDifference:
		return aggregateGoalDifference(records), nil
	case ModeHomeAwayThreshold:
		if threshold < 1 {
			return nil, errors.Wrapf(ErrInvalidThreshold, "got %d", threshold)
		}
		return aggregateHomeAway(records, threshold), nil
	}
	return nil, errors.Wrapf(ErrInvalidMode, "%d", int(mode))
}

func aggregateWins(records []models.MatchRecord) map[pair]*tally {
	out := make(map[pair]*tally)
	for _, r := range records {
		winner, loser, ok := r.Winner()
		if !ok {
			continue
		}
		t := get(out, pair{winner, loser})
		t.wins++
		t.weight++
	}
	return out
}

func aggregateGoalDifference(records []models.MatchRecord) map[pair]*tally {
	out := make(map[pair]*tally)
	for _, r := range records {
		winner, loser, ok := r.Winner()
		if !ok {
			continue
		}
		diff := r.HomeScore - r.AwayScore
		if diff < 0 {
			diff = -diff
		}
		t := get(out, pair{winner, loser})
		t.wins++
		t.margin += diff
		t.weight += float64(diff)
	}
	return out
}

// aggregateHomeAway counts wins per fixture orientation (home, away). An
// orientation contributes home→away when the home side won at least
// threshold times and, independently, away→home when the away side did.
func aggregateHomeAway(records []models.MatchRecord, threshold int) map[pair]*tally {
	type fixture struct {
		homeWins, awayWins int
	}
	fixtures := make(map[pair]*fixture)
	for _, r := range records {
		key := pair{r.HomeTeam, r.AwayTeam}
		f, ok := fixtures[key]
		if !ok {
			f = &fixture{}
			fixtures[key] = f
		}
		switch {
		case r.HomeScore > r.AwayScore:
			f.homeWins++
		case r.AwayScore > r.HomeScore:
			f.awayWins++
		}
	}

	out := make(map[pair]*tally)
	for key, f := range fixtures {
		if f.homeWins >= threshold {
			t := get(out, pair{key.source, key.target})
			t.homeWins += f.homeWins
			t.wins += f.homeWins
			t.weight += float64(f.homeWins)
		}
		if f.awayWins >= threshold {
			t := get(out, pair{key.target, key.source})
			t.awayWins += f.awayWins
			t.wins += f.awayWins
			t.weight += float64(f.awayWins)
		}
	}
	return out
}

func get(m map[pair]*tally, p pair) *tally {
	t, ok := m[p]
	if !ok {
		t = &tally{}
		m[p] = t
	}
	return t
}

// sortedPairs returns the keys of m ordered by source then target
func sortedPairs(m map[pair]*tally) []pair {
	keys := make([]pair, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].target < keys[j].target
	})
	return keys
}
