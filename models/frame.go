package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Column names of the match dataset
const (
	ColHomeTeam          = "home_team"
	ColAwayTeam          = "away_team"
	ColHomeScore         = "home_score"
	ColAwayScore         = "away_score"
	ColResult            = "result"
	ColMatchDate         = "match_date"
	ColCompetition       = "competition"
	ColPossessionHome    = "possession_home"
	ColPossessionAway    = "possession_away"
	ColShotsOnTargetHome = "shots_on_target_home"
	ColShotsOnTargetAway = "shots_on_target_away"
)

// DateLayout is the on-disk format of match_date
const DateLayout = "2006-01-02"

// MatchColumns lists every column of the dashboard dataset in display order
var MatchColumns = []string{
	ColHomeTeam, ColAwayTeam, ColHomeScore, ColAwayScore, ColResult,
	ColMatchDate, ColCompetition, ColPossessionHome, ColPossessionAway,
	ColShotsOnTargetHome, ColShotsOnTargetAway,
}

// Frame is a tabular match dataset. Cells are kept as text so that a
// missing or malformed column is visible to whoever consumes the frame.
type Frame struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	index   map[string]int
}

// NewFrame creates a frame. Column names are trimmed and lower-cased.
func NewFrame(columns []string, rows [][]string) *Frame {
	f := &Frame{
		Columns: make([]string, len(columns)),
		Rows:    rows,
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		name := strings.ToLower(strings.TrimSpace(col))
		f.Columns[i] = name
		if _, dup := f.index[name]; !dup {
			f.index[name] = i
		}
	}
	return f
}

// Len returns the number of rows; a nil frame is empty
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Index returns the position of a column, or -1
func (f *Frame) Index(col string) int {
	if f == nil {
		return -1
	}
	if f.index == nil {
		// Frames built as literals skip NewFrame.
		for i, name := range f.Columns {
			if name == col {
				return i
			}
		}
		return -1
	}
	if i, ok := f.index[col]; ok {
		return i
	}
	return -1
}

// MissingColumns returns the subset of cols the frame does not carry
func (f *Frame) MissingColumns(cols ...string) []string {
	var missing []string
	for _, col := range cols {
		if f.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	return missing
}

// Value returns the trimmed cell at (row, col). ok is false when the column
// is absent or the row is too short.
func (f *Frame) Value(row int, col string) (string, bool) {
	i := f.Index(col)
	if i < 0 || row < 0 || row >= f.Len() || i >= len(f.Rows[row]) {
		return "", false
	}
	return strings.TrimSpace(f.Rows[row][i]), true
}

// Int parses the cell at (row, col) as an integer
func (f *Frame) Int(row int, col string) (int, error) {
	v, ok := f.Value(row, col)
	if !ok {
		return 0, errors.Errorf("row %d: column %s missing", row, col)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "row %d: column %s", row, col)
	}
	return n, nil
}

// Match decodes row i. Optional columns that are absent or empty are left
// at their zero value; malformed values are errors.
func (f *Frame) Match(i int) (Match, error) {
	var m Match
	var err error

	m.HomeTeam, _ = f.Value(i, ColHomeTeam)
	m.AwayTeam, _ = f.Value(i, ColAwayTeam)
	if m.HomeScore, err = f.optionalInt(i, ColHomeScore); err != nil {
		return m, err
	}
	if m.AwayScore, err = f.optionalInt(i, ColAwayScore); err != nil {
		return m, err
	}
	if v, ok := f.Value(i, ColResult); ok && v != "" {
		if r, ok := ParseResult(v); ok {
			m.Result = r
		}
	}
	if m.Result == "" {
		m.Result = ResultFromScore(m.HomeScore, m.AwayScore)
	}
	if v, ok := f.Value(i, ColMatchDate); ok && v != "" {
		if m.Date, err = ParseDate(v); err != nil {
			return m, errors.Wrapf(err, "row %d: column %s", i, ColMatchDate)
		}
	}
	m.Competition, _ = f.Value(i, ColCompetition)
	if m.PossessionHome, err = f.optionalFloat(i, ColPossessionHome); err != nil {
		return m, err
	}
	if m.PossessionAway, err = f.optionalFloat(i, ColPossessionAway); err != nil {
		return m, err
	}
	if m.ShotsOnTargetHome, err = f.optionalInt(i, ColShotsOnTargetHome); err != nil {
		return m, err
	}
	if m.ShotsOnTargetAway, err = f.optionalInt(i, ColShotsOnTargetAway); err != nil {
		return m, err
	}
	return m, nil
}

// Matches decodes every row
func (f *Frame) Matches() ([]Match, error) {
	out := make([]Match, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		m, err := f.Match(i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Filter returns a new frame holding only rows that pass the filter. Rows
// that cannot be decoded are kept so the graph builder can report them.
func (f *Frame) Filter(filter MatchFilter) *Frame {
	if f == nil || filter.IsZero() {
		return f
	}
	rows := make([][]string, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		m, err := f.Match(i)
		if err == nil && !filter.Matches(m) {
			continue
		}
		rows = append(rows, f.Rows[i])
	}
	return NewFrame(f.Columns, rows)
}

func (f *Frame) optionalInt(row int, col string) (int, error) {
	if v, ok := f.Value(row, col); !ok || v == "" {
		return 0, nil
	}
	return f.Int(row, col)
}

func (f *Frame) optionalFloat(row int, col string) (float64, error) {
	v, ok := f.Value(row, col)
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "row %d: column %s", row, col)
	}
	return n, nil
}

// FrameFromMatches lays matches out with the full dashboard column set
func FrameFromMatches(matches []Match) *Frame {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		date := ""
		if !m.Date.IsZero() {
			date = m.Date.Format(DateLayout)
		}
		rows = append(rows, []string{
			m.HomeTeam,
			m.AwayTeam,
			strconv.Itoa(m.HomeScore),
			strconv.Itoa(m.AwayScore),
			string(m.Result),
			date,
			m.Competition,
			strconv.FormatFloat(m.PossessionHome, 'f', -1, 64),
			strconv.FormatFloat(m.PossessionAway, 'f', -1, 64),
			strconv.Itoa(m.ShotsOnTargetHome),
			strconv.Itoa(m.ShotsOnTargetAway),
		})
	}
	return NewFrame(MatchColumns, rows)
}

// ParseDate accepts plain dates and RFC 3339 timestamps
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Errorf("unrecognized date %q", s)
	}
	return t, nil
}
