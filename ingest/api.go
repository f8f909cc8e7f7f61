package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/matchgraph/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURL is the football-data.org v4 endpoint
	DefaultAPIBaseURL = "https://api.football-data.org/v4"

	defaultPageSize   = 500
	defaultMaxRetries = 3
)

// ErrUnauthorized is returned when the API rejects the token
var ErrUnauthorized = errors.New("football-data: unauthorized")

// APIClient fetches finished matches from football-data.org
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	pageSize   int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewAPIClient creates a client. An empty baseURL means DefaultAPIBaseURL.
func NewAPIClient(baseURL, apiKey string, logger *zap.Logger) *APIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		maxRetries: defaultMaxRetries,
		pageSize:   defaultPageSize,
		backoff:    time.Second,
		logger:     logger.Named("api"),
	}
}

// apiMatch mirrors the subset of the v4 match resource we store
type apiMatch struct {
	ID          int64  `json:"id"`
	UTCDate     string `json:"utcDate"`
	Status      string `json:"status"`
	Competition struct {
		Code string `json:"code"`
	} `json:"competition"`
	HomeTeam struct {
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		Name string `json:"name"`
	} `json:"awayTeam"`
	Score struct {
		Winner   string `json:"winner"`
		FullTime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"fullTime"`
	} `json:"score"`
}

type matchesEnvelope struct {
	ResultSet struct {
		Count int `json:"count"`
	} `json:"resultSet"`
	Matches []apiMatch `json:"matches"`
}

// CompetitionMatches returns the finished matches of a competition. A zero
// season lets the API pick the current one.
func (c *APIClient) CompetitionMatches(ctx context.Context, code string, season int) ([]models.Match, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New("competition code is required")
	}

	var out []models.Match
	for offset := 0; ; offset += c.pageSize {
		query := url.Values{}
		query.Set("status", "FINISHED")
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))
		if season > 0 {
			query.Set("season", strconv.Itoa(season))
		}

		var page matchesEnvelope
		path := fmt.Sprintf("/competitions/%s/matches", url.PathEscape(code))
		if err := c.getJSON(ctx, path, query, &page); err != nil {
			return nil, errors.Wrapf(err, "fetching %s matches", code)
		}

		for _, m := range page.Matches {
			match, ok := convertMatch(m, code)
			if !ok {
				c.logger.Debug("skipping match", zap.Int64("id", m.ID), zap.String("status", m.Status))
				continue
			}
			out = append(out, match)
		}

		if len(page.Matches) < c.pageSize {
			break
		}
	}

	c.logger.Info("fetched matches", zap.String("competition", code), zap.Int("count", len(out)))
	return out, nil
}

func convertMatch(m apiMatch, code string) (models.Match, bool) {
	if m.Status != "" && m.Status != "FINISHED" {
		return models.Match{}, false
	}
	home, away := m.Score.FullTime.Home, m.Score.FullTime.Away
	if home == nil || away == nil || m.HomeTeam.Name == "" || m.AwayTeam.Name == "" {
		return models.Match{}, false
	}

	match := models.Match{
		ID: m.ID,
		MatchRecord: models.MatchRecord{
			HomeTeam:  m.HomeTeam.Name,
			AwayTeam:  m.AwayTeam.Name,
			HomeScore: *home,
			AwayScore: *away,
		},
		Competition: m.Competition.Code,
	}
	if match.Competition == "" {
		match.Competition = code
	}
	if result, ok := models.ParseResult(m.Score.Winner); ok {
		match.Result = result
	} else {
		match.Result = models.ResultFromScore(*home, *away)
	}
	if date, err := models.ParseDate(m.UTCDate); err == nil {
		match.Date = date
	}
	return match, true
}

// getJSON issues a GET and decodes the body, retrying 429 and 5xx responses
// with exponential backoff.
func (c *APIClient) getJSON(ctx context.Context, path string, query url.Values, dst interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	wait := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying request",
				zap.String("url", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		retry, err := c.do(ctx, endpoint, dst)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return errors.Wrapf(lastErr, "giving up after %d retries", c.maxRetries)
}

func (c *APIClient) do(ctx context.Context, endpoint string, dst interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return true, errors.Wrap(err, "reading response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, errors.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return false, errors.Wrap(err, "decoding response")
	}
	return false, nil
}
