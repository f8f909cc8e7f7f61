// Package store persists matches in a Postgres star schema: one fact table
// of matches keyed onto team, competition and date dimensions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/TFMV/matchgraph/models"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store wraps a Postgres connection
type Store struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewStore opens a Postgres connection using the given connection string
// and verifies it with a ping.
func NewStore(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger = logger.Named("store")
	logger.Info("connected to database")
	return &Store{DB: db, logger: logger}, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.DB.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dim_team (
		team_id SERIAL PRIMARY KEY,
		name    TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_competition (
		competition_id SERIAL PRIMARY KEY,
		code           TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_date (
		date_id    INT  PRIMARY KEY,
		match_date DATE NOT NULL UNIQUE,
		year       INT  NOT NULL,
		month      INT  NOT NULL,
		day        INT  NOT NULL,
		weekday    INT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fact_match (
		id                   BIGSERIAL PRIMARY KEY,
		external_id          BIGINT,
		date_id              INT    NOT NULL REFERENCES dim_date(date_id),
		competition_id       INT    REFERENCES dim_competition(competition_id),
		home_team_id         INT    NOT NULL REFERENCES dim_team(team_id),
		away_team_id         INT    NOT NULL REFERENCES dim_team(team_id),
		home_score           INT    NOT NULL,
		away_score           INT    NOT NULL,
		result               TEXT   NOT NULL,
		possession_home      DOUBLE PRECISION NOT NULL DEFAULT 0,
		possession_away      DOUBLE PRECISION NOT NULL DEFAULT 0,
		shots_on_target_home INT    NOT NULL DEFAULT 0,
		shots_on_target_away INT    NOT NULL DEFAULT 0,
		UNIQUE (date_id, home_team_id, away_team_id)
	)`,
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "migrating")
		}
	}
	return nil
}

// UpsertMatches stores matches in one transaction. A match already stored
// for the same date and fixture is overwritten. Matches without a date
// cannot be keyed and are skipped.
func (s *Store) UpsertMatches(ctx context.Context, matches []models.Match) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin upsert tx")
	}
	defer tx.Rollback()

	teams := make(map[string]int64)
	comps := make(map[string]int64)
	dates := make(map[int]bool)

	stored := 0
	for _, m := range matches {
		if m.Date.IsZero() {
			s.logger.Warn("skipping undated match",
				zap.String("home", m.HomeTeam), zap.String("away", m.AwayTeam))
			continue
		}

		homeID, err := upsertKey(ctx, tx, teams, "dim_team", "team_id", "name", m.HomeTeam)
		if err != nil {
			return 0, err
		}
		awayID, err := upsertKey(ctx, tx, teams, "dim_team", "team_id", "name", m.AwayTeam)
		if err != nil {
			return 0, err
		}
		var compID sql.NullInt64
		if m.Competition != "" {
			id, err := upsertKey(ctx, tx, comps, "dim_competition", "competition_id", "code", m.Competition)
			if err != nil {
				return 0, err
			}
			compID = sql.NullInt64{Int64: id, Valid: true}
		}
		dateID := dateKey(m.Date)
		if !dates[dateID] {
			if err := upsertDate(ctx, tx, m.Date); err != nil {
				return 0, err
			}
			dates[dateID] = true
		}

		var externalID sql.NullInt64
		if m.ID != 0 {
			externalID = sql.NullInt64{Int64: m.ID, Valid: true}
		}
		result := m.Result
		if result == "" {
			result = models.ResultFromScore(m.HomeScore, m.AwayScore)
		}

		const q = `
INSERT INTO fact_match (external_id, date_id, competition_id, home_team_id, away_team_id,
	home_score, away_score, result, possession_home, possession_away,
	shots_on_target_home, shots_on_target_away)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (date_id, home_team_id, away_team_id) DO UPDATE SET
	external_id = EXCLUDED.external_id,
	competition_id = EXCLUDED.competition_id,
	home_score = EXCLUDED.home_score,
	away_score = EXCLUDED.away_score,
	result = EXCLUDED.result,
	possession_home = EXCLUDED.possession_home,
	possession_away = EXCLUDED.possession_away,
	shots_on_target_home = EXCLUDED.shots_on_target_home,
	shots_on_target_away = EXCLUDED.shots_on_target_away`
		if _, err := tx.ExecContext(ctx, q,
			externalID, dateID, compID, homeID, awayID,
			m.HomeScore, m.AwayScore, string(result),
			m.PossessionHome, m.PossessionAway,
			m.ShotsOnTargetHome, m.ShotsOnTargetAway,
		); err != nil {
			return 0, errors.Wrapf(err, "saving match %s v %s", m.HomeTeam, m.AwayTeam)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit upsert tx")
	}
	s.logger.Info("stored matches", zap.Int("stored", stored), zap.Int("received", len(matches)))
	return stored, nil
}

// upsertKey returns the surrogate key of a dimension row, inserting it when
// needed. cache holds keys already resolved within the transaction.
func upsertKey(ctx context.Context, tx *sql.Tx, cache map[string]int64, table, key, col, value string) (int64, error) {
	if id, ok := cache[value]; ok {
		return id, nil
	}
	q := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES ($1)
ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s
RETURNING %s`, table, col, col, col, col, key)

	var id int64
	if err := tx.QueryRowContext(ctx, q, value).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "upserting %s %q", table, value)
	}
	cache[value] = id
	return id, nil
}

func upsertDate(ctx context.Context, tx *sql.Tx, t time.Time) error {
	const q = `
INSERT INTO dim_date (date_id, match_date, year, month, day, weekday)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (date_id) DO NOTHING`
	day := t.UTC()
	_, err := tx.ExecContext(ctx, q,
		dateKey(day), day.Format(models.DateLayout),
		day.Year(), int(day.Month()), day.Day(), int(day.Weekday()))
	return errors.Wrap(err, "upserting date")
}

// dateKey is the yyyymmdd surrogate key of a date dimension row
func dateKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// buildMatchQuery returns the fact query for a filter and its arguments
func buildMatchQuery(filter models.MatchFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.From.IsZero() {
		where = append(where, "f.date_id >= "+arg(dateKey(filter.From)))
	}
	if !filter.To.IsZero() {
		where = append(where, "f.date_id <= "+arg(dateKey(filter.To)))
	}
	if filter.Competition != "" {
		where = append(where, "UPPER(c.code) = UPPER("+arg(filter.Competition)+")")
	}
	if filter.Team != "" {
		p := arg(filter.Team)
		where = append(where, "(h.name = "+p+" OR a.name = "+p+")")
	}

	var b strings.Builder
	b.WriteString(`SELECT COALESCE(f.external_id, 0), d.match_date, COALESCE(c.code, ''),
	h.name, a.name, f.home_score, f.away_score, f.result,
	f.possession_home, f.possession_away, f.shots_on_target_home, f.shots_on_target_away
FROM fact_match f
JOIN dim_date d ON d.date_id = f.date_id
JOIN dim_team h ON h.team_id = f.home_team_id
JOIN dim_team a ON a.team_id = f.away_team_id
LEFT JOIN dim_competition c ON c.competition_id = f.competition_id`)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, "\n  AND "))
	}
	b.WriteString("\nORDER BY f.date_id, f.id")
	return b.String(), args
}

// Matches loads the matches that pass filter, oldest first
func (s *Store) Matches(ctx context.Context, filter models.MatchFilter) ([]models.Match, error) {
	q, args := buildMatchQuery(filter)
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying matches")
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var (
			m      models.Match
			result string
		)
		if err := rows.Scan(
			&m.ID, &m.Date, &m.Competition,
			&m.HomeTeam, &m.AwayTeam, &m.HomeScore, &m.AwayScore, &result,
			&m.PossessionHome, &m.PossessionAway, &m.ShotsOnTargetHome, &m.ShotsOnTargetAway,
		); err != nil {
			return nil, errors.Wrap(err, "scanning match")
		}
		m.Result = models.Result(result)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating matches")
	}
	return matches, nil
}

// Frame loads the filtered matches as a dataset frame
func (s *Store) Frame(ctx context.Context, filter models.MatchFilter) (*models.Frame, error) {
	matches, err := s.Matches(ctx, filter)
	if err != nil {
		return nil, err
	}
	return models.FrameFromMatches(matches), nil
}

// Teams returns every team name in the team dimension
func (s *Store) Teams(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM dim_team ORDER BY name`)
}

// Competitions returns every competition code
func (s *Store) Competitions(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT code FROM dim_competition ORDER BY code`)
}

func (s *Store) names(ctx context.Context, q string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying names")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning name")
		}
		out = append(out, name)
	}
	return out, errors.Wrap(rows.Err(), "iterating names")
}
