// Package graph builds the team influence graph: a weighted directed graph
// in which an edge A→B records A's dominance over B under a chosen metric.
package graph

import (
	"strings"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
)

var (
	// ErrEmptyFrame indicates the dataset has no rows.
	ErrEmptyFrame = errors.New("graph: no matches to build from")
	// ErrMissingColumns indicates the dataset lacks a required column.
	ErrMissingColumns = errors.New("graph: required columns missing")
	// ErrMalformedRow indicates a row whose teams or scores cannot be used.
	ErrMalformedRow = errors.New("graph: malformed match row")
	// ErrInvalidMode indicates an unknown graph mode.
	ErrInvalidMode = errors.New("graph: invalid mode")
	// ErrInvalidThreshold indicates a threshold below 1.
	ErrInvalidThreshold = errors.New("graph: threshold must be at least 1")
)

// RequiredColumns must be present in a frame for any mode
var RequiredColumns = []string{
	models.ColHomeTeam, models.ColAwayTeam, models.ColHomeScore, models.ColAwayScore,
}

// DefaultThreshold is the HomeAwayThreshold cut-off used when the caller
// does not choose one.
const DefaultThreshold = 3

// Mode selects how matches become edges
type Mode int

const (
	// ModeWins adds one unit of weight per win, winner→loser.
	ModeWins Mode = iota
	// ModeGoalDifference weights winner→loser by the winning margin.
	ModeGoalDifference
	// ModeHomeAwayThreshold keeps only fixture orientations where one side
	// won at least threshold times.
	ModeHomeAwayThreshold
)

var modeNames = map[Mode]string{
	ModeWins:              "wins",
	ModeGoalDifference:    "goal_difference",
	ModeHomeAwayThreshold: "home_away_threshold",
}

// Modes lists every valid mode in display order
var Modes = []Mode{ModeWins, ModeGoalDifference, ModeHomeAwayThreshold}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// MarshalText encodes the mode by name
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts the mode names plus a few short aliases
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wins", "win":
		return ModeWins, nil
	case "goal_difference", "goal-difference", "goaldifference", "gd":
		return ModeGoalDifference, nil
	case "home_away_threshold", "home-away-threshold", "homeawaythreshold", "threshold":
		return ModeHomeAwayThreshold, nil
	}
	return 0, errors.Wrapf(ErrInvalidMode, "%q", s)
}

// Status tags the outcome of a build
type Status int

const (
	StatusOK Status = iota
	StatusInsufficientData
	StatusNoSignificantRelationships
	StatusConstructionFailure
)

// Messages shown in place of a graph
const (
	MessageInsufficientData           = "insufficient data"
	MessageNoSignificantRelationships = "no significant relationships"
	MessageConstructionFailure        = "error generating graph"
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInsufficientData:
		return "insufficient_data"
	case StatusNoSignificantRelationships:
		return "no_significant_relationships"
	case StatusConstructionFailure:
		return "construction_failure"
	}
	return "unknown"
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of Build. Graph is never nil; for every status
// other than StatusOK it is empty and Message says why.
type Result struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Mode      Mode          `json:"mode"`
	Threshold int           `json:"threshold"`
	Graph     *models.Graph `json:"graph"`
	Err       error         `json:"-"`
}

// OK reports whether the result carries a real graph
func (r Result) OK() bool {
	return r.Status == StatusOK
}
