package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxRunErrorLength = 4000

// Pipeline run states stored in allball.pipeline_runs.status.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunCounters are the per-stage tallies of one pipeline run.
type RunCounters struct {
	Fetched  int `json:"fetched"`
	Unusable int `json:"unusable"`
	Stale    int `json:"stale"`
	Undated  int `json:"undated"`
	Kept     int `json:"kept"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Enriched int `json:"enriched"`
	Fallback int `json:"fallback"`
}

// RunRecord is the read shape of allball.pipeline_runs.
type RunRecord struct {
	RunID        int64       `json:"run_id"`
	RunUUID      string      `json:"run_uuid"`
	TriggeredBy  string      `json:"triggered_by"`
	Status       string      `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	Counters     RunCounters `json:"counters"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}

// StartRun opens a ledger row in the running state.
func (p *Pool) StartRun(ctx context.Context, triggeredBy string, startedAt time.Time) (RunRecord, error) {
	const q = `
INSERT INTO allball.pipeline_runs (
	run_uuid,
	triggered_by,
	status,
	started_at,
	created_at,
	updated_at
)
VALUES ($1, $2, 'running', $3, $3, $3)
RETURNING run_id, run_uuid::text
`
	rec := RunRecord{
		TriggeredBy: triggeredBy,
		Status:      RunStatusRunning,
		StartedAt:   startedAt.UTC(),
	}
	if err := p.QueryRow(ctx, q, uuid.NewString(), triggeredBy, rec.StartedAt).Scan(&rec.RunID, &rec.RunUUID); err != nil {
		return RunRecord{}, fmt.Errorf("insert pipeline run: %w", err)
	}
	return rec, nil
}

func (p *Pool) FinishRun(ctx context.Context, runID int64, counters RunCounters, finishedAt time.Time) error {
	const q = `
UPDATE allball.pipeline_runs
SET
	status = 'completed',
	items_fetched = $2,
	items_unusable = $3,
	items_stale = $4,
	items_undated = $5,
	items_kept = $6,
	items_created = $7,
	items_existing = $8,
	items_enriched = $9,
	items_fallback = $10,
	finished_at = $11,
	updated_at = $11,
	error_message = NULL
WHERE run_id = $1
`
	_, err := p.Exec(ctx, q, runID,
		counters.Fetched, counters.Unusable, counters.Stale, counters.Undated, counters.Kept,
		counters.Created, counters.Existing, counters.Enriched, counters.Fallback,
		finishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark pipeline run completed: %w", err)
	}
	return nil
}

func (p *Pool) FailRun(ctx context.Context, runID int64, counters RunCounters, cause error, finishedAt time.Time) error {
	const q = `
UPDATE allball.pipeline_runs
SET
	status = 'failed',
	items_fetched = $2,
	items_unusable = $3,
	items_stale = $4,
	items_undated = $5,
	items_kept = $6,
	items_created = $7,
	items_existing = $8,
	items_enriched = $9,
	items_fallback = $10,
	error_message = $11,
	finished_at = $12,
	updated_at = $12
WHERE run_id = $1
`
	msg := "unknown error"
	if cause != nil {
		msg = strings.TrimSpace(cause.Error())
	}
	if len(msg) > maxRunErrorLength {
		msg = msg[:maxRunErrorLength]
	}

	_, err := p.Exec(ctx, q, runID,
		counters.Fetched, counters.Unusable, counters.Stale, counters.Undated, counters.Kept,
		counters.Created, counters.Existing, counters.Enriched, counters.Fallback,
		msg, finishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark pipeline run failed: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (p *Pool) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	run_id,
	run_uuid::text,
	triggered_by,
	status::text,
	started_at,
	finished_at,
	items_fetched,
	items_unusable,
	items_stale,
	items_undated,
	items_kept,
	items_created,
	items_existing,
	items_enriched,
	items_fallback,
	error_message
FROM allball.pipeline_runs
ORDER BY started_at DESC, run_id DESC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.RunUUID,
			&rec.TriggeredBy,
			&rec.Status,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.Counters.Fetched,
			&rec.Counters.Unusable,
			&rec.Counters.Stale,
			&rec.Counters.Undated,
			&rec.Counters.Kept,
			&rec.Counters.Created,
			&rec.Counters.Existing,
			&rec.Counters.Enriched,
			&rec.Counters.Fallback,
			&rec.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan pipeline run row: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline run rows: %w", err)
	}
	return runs, nil
}
