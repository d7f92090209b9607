package tracker

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS query_usage").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tr := New(db)
	require.NoError(t, tr.InitSchema())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	done := now.Add(800 * time.Millisecond)
	prompt, completion, total := 412, 96, 508
	cost := 0.000153

	mock.ExpectExec("INSERT INTO query_usage").
		WithArgs(
			"parsing", "urgent tasks due this week", "openai/gpt-4o-mini", "openrouter",
			now, &done, &prompt, &completion, &total, &cost, "actual", true, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tr := New(db)
	err = tr.Track(&Record{
		Purpose:           "parsing",
		Query:             "urgent tasks due this week",
		Model:             "openai/gpt-4o-mini",
		Provider:          "openrouter",
		RequestTimestamp:  now,
		ResponseTimestamp: &done,
		PromptTokens:      &prompt,
		CompletionTokens:  &completion,
		TotalTokens:       &total,
		Cost:              &cost,
		TokenSource:       "actual",
		Success:           true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackFailureRecordsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	errMsg := "authentication failed (HTTP 401)"

	mock.ExpectExec("INSERT INTO query_usage").
		WithArgs(
			"parsing", "p1 blocked", "claude-3-5-haiku-latest", "anthropic",
			now, nil, nil, nil, nil, nil, "", false, &errMsg,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tr := New(db)
	err = tr.Track(&Record{
		Purpose:          "parsing",
		Query:            "p1 blocked",
		Model:            "claude-3-5-haiku-latest",
		Provider:         "anthropic",
		RequestTimestamp: now,
		Success:          false,
		ErrorMessage:     &errMsg,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Now().Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"total_requests", "successful_requests", "total_tokens", "total_cost", "unique_models",
	}).AddRow(42, 40, 19344, 0.0061, 3)

	mock.ExpectQuery("SELECT").WithArgs(since).WillReturnRows(rows)

	tr := New(db)
	stats, err := tr.GetStats(since)
	require.NoError(t, err)

	assert.Equal(t, 42, stats.TotalRequests)
	assert.Equal(t, 40, stats.SuccessfulRequests)
	assert.Equal(t, 19344, stats.TotalTokens)
	assert.InDelta(t, 0.0061, stats.TotalCost, 1e-9)
	assert.Equal(t, 3, stats.UniqueModels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModelBreakdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Now().Add(-7 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"model", "provider", "requests", "tokens", "cost"}).
		AddRow("gpt-4o", "openai", 5, 9100, 0.041).
		AddRow("llama3.2", "local", 30, 14000, 0.0)

	mock.ExpectQuery("SELECT").WithArgs(since).WillReturnRows(rows)

	tr := New(db)
	breakdown, err := tr.GetModelBreakdown(since)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	assert.Equal(t, "gpt-4o", breakdown[0].Model)
	assert.Equal(t, 5, breakdown[0].Requests)
	assert.Equal(t, "llama3.2", breakdown[1].Model)
	assert.Zero(t, breakdown[1].Cost)
	assert.NoError(t, mock.ExpectationsWereMet())
}
