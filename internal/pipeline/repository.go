package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/andresuchdata/docsync/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id            UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	processed     INT NOT NULL DEFAULT 0,
	skipped       INT NOT NULL DEFAULT 0,
	failed        INT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_file_outcomes (
	id               BIGSERIAL PRIMARY KEY,
	run_id           UUID NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
	position         INT NOT NULL,
	file_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	state            TEXT NOT NULL,
	object_path      TEXT NOT NULL DEFAULT '',
	attempts         INT NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	relocated        BOOLEAN NOT NULL DEFAULT FALSE,
	relocation_error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sync_file_outcomes_run ON sync_file_outcomes (run_id, position);
`

// RunSummary is a ledger row for one run.
type RunSummary struct {
	ID           uuid.UUID `json:"run_id" db:"id"`
	Status       RunStatus `json:"status" db:"status"`
	Processed    int       `json:"processed" db:"processed"`
	Skipped      int       `json:"skipped" db:"skipped"`
	Failed       int       `json:"failed" db:"failed"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
}

// Repository is the run ledger
type Repository struct {
	db *postgres.DB
}

// NewRepository creates a new run ledger
func NewRepository(db *postgres.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the ledger tables if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// RecordRun writes the run and its per-file outcomes in one transaction.
func (r *Repository) RecordRun(ctx context.Context, result *RunResult) error {
	errMsg := result.Message()

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_runs (
				id, status, processed, skipped, failed,
				error_message, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			result.RunID, result.Status, result.Processed, result.Skipped, result.Failed,
			errMsg, result.StartedAt, result.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert sync run: %w", err)
		}

		for i, f := range result.Files {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sync_file_outcomes (
					run_id, position, file_id, name, state, object_path,
					attempts, error, relocated, relocation_error
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				result.RunID, i, f.FileID, f.Name, string(f.State), f.ObjectPath,
				f.Attempts, f.Error, f.Relocated, f.RelocationError,
			)
			if err != nil {
				return fmt.Errorf("insert outcome for %s: %w", f.FileID, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	runs := make([]RunSummary, 0, limit)
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, status, processed, skipped, failed,
		       error_message, started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return runs, nil
}

// RunOutcomes returns the per-file outcomes of one run in processing order.
func (r *Repository) RunOutcomes(ctx context.Context, runID uuid.UUID) ([]domain.FileOutcome, error) {
	outcomes := make([]domain.FileOutcome, 0)
	err := r.db.SelectContext(ctx, &outcomes, `
		SELECT file_id, name, state, object_path, attempts,
		       error, relocated, relocation_error
		FROM sync_file_outcomes
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes for run %s: %w", runID, err)
	}
	return outcomes, nil
}

var _ Recorder = (*Repository)(nil)
