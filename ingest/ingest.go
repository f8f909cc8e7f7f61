// Package ingest reads match datasets from files and from the
// football-data.org API.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
)

// DataProcessor defines the interface that all data processors must implement
type DataProcessor interface {
	// ProcessData takes raw file bytes and returns the match frame
	ProcessData(data []byte) (*models.Frame, error)

	// GetName returns the name of the processor
	GetName() string
}

// headerAliases maps common spellings found in football CSV exports onto
// the dataset's column names.
var headerAliases = map[string]string{
	"home":         models.ColHomeTeam,
	"hometeam":     models.ColHomeTeam,
	"home team":    models.ColHomeTeam,
	"away":         models.ColAwayTeam,
	"awayteam":     models.ColAwayTeam,
	"away team":    models.ColAwayTeam,
	"home_goals":   models.ColHomeScore,
	"fthg":         models.ColHomeScore,
	"hg":           models.ColHomeScore,
	"away_goals":   models.ColAwayScore,
	"ftag":         models.ColAwayScore,
	"ag":           models.ColAwayScore,
	"ftr":          models.ColResult,
	"winner":       models.ColResult,
	"date":         models.ColMatchDate,
	"utc_date":     models.ColMatchDate,
	"utcdate":      models.ColMatchDate,
	"league":       models.ColCompetition,
	"div":          models.ColCompetition,
	"hst":          models.ColShotsOnTargetHome,
	"ast":          models.ColShotsOnTargetAway,
	"home_poss":    models.ColPossessionHome,
	"away_poss":    models.ColPossessionAway,
	"possessionh":  models.ColPossessionHome,
	"possessiona":  models.ColPossessionAway,
	"home_shots_t": models.ColShotsOnTargetHome,
	"away_shots_t": models.ColShotsOnTargetAway,
}

// NormalizeHeader returns the dataset column name for a file header
func NormalizeHeader(col string) string {
	name := strings.ToLower(strings.TrimSpace(col))
	if alias, ok := headerAliases[name]; ok {
		return alias
	}
	return name
}

// CSVProcessor handles CSV data
type CSVProcessor struct {
	comma rune
}

// NewCSVProcessor creates a new CSV processor. A zero comma means ','.
func NewCSVProcessor(comma rune) *CSVProcessor {
	if comma == 0 {
		comma = ','
	}
	return &CSVProcessor{comma: comma}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData processes CSV data. Missing columns are not an error here;
// the graph builder decides what it can work with.
func (p *CSVProcessor) ProcessData(data []byte) (*models.Frame, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return models.NewFrame(nil, nil), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading CSV header")
	}
	for i := range header {
		header[i] = NormalizeHeader(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV row")
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}

	return models.NewFrame(header, rows), nil
}

// JSONProcessor handles JSON data: either an array of match objects or an
// object with a "matches" array.
type JSONProcessor struct{}

// NewJSONProcessor creates a new JSON processor
func NewJSONProcessor() *JSONProcessor {
	return &JSONProcessor{}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData processes JSON data
func (p *JSONProcessor) ProcessData(data []byte) (*models.Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return models.NewFrame(nil, nil), nil
	}

	var objects []map[string]json.RawMessage
	if trimmed[0] == '{' {
		var wrapper struct {
			Matches []map[string]json.RawMessage `json:"matches"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, errors.Wrap(err, "error parsing JSON")
		}
		objects = wrapper.Matches
	} else if err := json.Unmarshal(trimmed, &objects); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON")
	}

	// Columns are the union of keys, known columns first
	seen := make(map[string]bool)
	var extra []string
	for _, obj := range objects {
		for key := range obj {
			name := NormalizeHeader(key)
			if !seen[name] {
				seen[name] = true
				if !isKnownColumn(name) {
					extra = append(extra, name)
				}
			}
		}
	}
	sort.Strings(extra)

	var columns []string
	for _, col := range models.MatchColumns {
		if seen[col] {
			columns = append(columns, col)
		}
	}
	columns = append(columns, extra...)

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col] = i
	}

	// When several keys map to one column the canonical key wins, then the
	// alias that sorts first.
	rows := make([][]string, 0, len(objects))
	for i, obj := range objects {
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		row := make([]string, len(columns))
		filled := make([]bool, len(columns))
		canonical := make([]bool, len(columns))
		for _, key := range keys {
			cell, err := jsonCell(obj[key])
			if err != nil {
				return nil, errors.Wrapf(err, "match %d, field %s", i, key)
			}
			name := NormalizeHeader(key)
			col := index[name]
			isCanonical := strings.ToLower(strings.TrimSpace(key)) == name
			if canonical[col] || (filled[col] && !isCanonical) {
				continue
			}
			row[col] = cell
			filled[col] = true
			canonical[col] = isCanonical
		}
		rows = append(rows, row)
	}

	return models.NewFrame(columns, rows), nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (DataProcessor, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return NewJSONProcessor(), nil
	case "csv":
		return NewCSVProcessor(','), nil
	case "tsv":
		return NewCSVProcessor('\t'), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ProcessFile reads a match file, choosing the processor by extension
func ProcessFile(filename string) (*models.Frame, error) {
	processor, err := GetProcessor(filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}
	frame, err := processor.ProcessData(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", processor.GetName())
	}
	return frame, nil
}

// MemorySource serves a frame loaded once from a file
type MemorySource struct {
	mu    sync.RWMutex
	frame *models.Frame
}

// NewMemorySource wraps a frame
func NewMemorySource(frame *models.Frame) *MemorySource {
	return &MemorySource{frame: frame}
}

// Frame returns the rows that pass filter
func (s *MemorySource) Frame(_ context.Context, filter models.MatchFilter) (*models.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.Filter(filter), nil
}

// Teams returns the sorted set of team names
func (s *MemorySource) Teams(_ context.Context) ([]string, error) {
	return s.distinct(models.ColHomeTeam, models.ColAwayTeam), nil
}

// Competitions returns the sorted set of competition codes
func (s *MemorySource) Competitions(_ context.Context) ([]string, error) {
	return s.distinct(models.ColCompetition), nil
}

func (s *MemorySource) distinct(cols ...string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for i := 0; i < s.frame.Len(); i++ {
		for _, col := range cols {
			if v, ok := s.frame.Value(i, col); ok && v != "" {
				set[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isKnownColumn(name string) bool {
	for _, col := range models.MatchColumns {
		if col == name {
			return true
		}
	}
	return false
}

func jsonCell(raw json.RawMessage) (string, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return fmt.Sprint(val), nil
	default:
		return "", errors.Errorf("unsupported value %s", string(raw))
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
