// Package tracker records per-invocation token usage and cost to a
// sqlite database so spend can be audited across queries.
package tracker

import (
	"database/sql"
	"time"

	"github.com/tasklens/tasklens/errors"
)

// Record is one gateway invocation, successful or not.
type Record struct {
	ID                int        `json:"id"`
	Purpose           string     `json:"purpose"` // pipeline stage, e.g. "parsing"
	Query             string     `json:"query"`   // raw user query text
	Model             string     `json:"model"`
	Provider          string     `json:"provider"`
	RequestTimestamp  time.Time  `json:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
	PromptTokens      *int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  *int       `json:"completion_tokens,omitempty"`
	TotalTokens       *int       `json:"total_tokens,omitempty"`
	Cost              *float64   `json:"cost,omitempty"`
	TokenSource       string     `json:"token_source,omitempty"` // actual | estimated
	Success           bool       `json:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
}

// Stats aggregates usage over a time window.
type Stats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
}

// ModelBreakdown aggregates usage per model.
type ModelBreakdown struct {
	Model    string  `json:"model"`
	Provider string  `json:"provider"`
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Tracker persists usage records.
type Tracker struct {
	db *sql.DB
}

// New creates a tracker over an open database handle.
func New(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// InitSchema creates the usage table if it does not exist.
func (t *Tracker) InitSchema() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS query_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			purpose TEXT NOT NULL,
			query TEXT NOT NULL,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			request_timestamp DATETIME NOT NULL,
			response_timestamp DATETIME,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			total_tokens INTEGER,
			cost REAL,
			token_source TEXT,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	return errors.Wrap(err, "failed to create query_usage table")
}

// Track inserts one usage record.
func (t *Tracker) Track(rec *Record) error {
	query := `
		INSERT INTO query_usage (
			purpose, query, model, provider, request_timestamp,
			response_timestamp, prompt_tokens, completion_tokens,
			total_tokens, cost, token_source, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.Exec(query,
		rec.Purpose, rec.Query, rec.Model, rec.Provider,
		rec.RequestTimestamp, rec.ResponseTimestamp,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Cost, rec.TokenSource, rec.Success, rec.ErrorMessage,
	)

	return errors.Wrap(err, "failed to track usage")
}

// GetStats returns aggregate usage since the given time.
func (t *Tracker) GetStats(since time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(total_tokens, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model) as unique_models
		FROM query_usage
		WHERE request_timestamp >= ?`

	var stats Stats
	err := t.db.QueryRow(query, since).Scan(
		&stats.TotalRequests,
		&stats.SuccessfulRequests,
		&stats.TotalTokens,
		&stats.TotalCost,
		&stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage stats")
	}

	return &stats, nil
}

// GetModelBreakdown returns per-model usage since the given time,
// most expensive first.
func (t *Tracker) GetModelBreakdown(since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model,
			provider,
			COUNT(*) as requests,
			COALESCE(SUM(COALESCE(total_tokens, 0)), 0) as tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as cost
		FROM query_usage
		WHERE request_timestamp >= ?
		GROUP BY model, provider
		ORDER BY cost DESC`

	rows, err := t.db.Query(query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.Model, &mb.Provider, &mb.Requests, &mb.Tokens, &mb.Cost); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown row")
		}
		breakdown = append(breakdown, mb)
	}

	return breakdown, rows.Err()
}
