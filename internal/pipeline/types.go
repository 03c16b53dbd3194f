package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/google/uuid"
)

// Source is where candidate files come from.
type Source interface {
	ListFiles(ctx context.Context) ([]domain.SourceFile, error)
	Content(ctx context.Context, fileID string) ([]byte, error)
	Relocate(ctx context.Context, fileID string) error
}

// Recorder persists finished runs for auditing. It is never consulted
// when deciding whether a file needs uploading.
type Recorder interface {
	RecordRun(ctx context.Context, result *RunResult) error
}

type FileOutcome = domain.FileOutcome

// RunStatus represents how a run ended
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusAborted   RunStatus = "aborted"
)

// RunResult is the outcome of one sweep of the source folder.
type RunResult struct {
	RunID      uuid.UUID     `json:"run_id"`
	Status     RunStatus     `json:"status"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Errors     []string      `json:"errors"`
	Files      []FileOutcome `json:"files"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	// AbortReason is set when the run stopped before every file was seen.
	AbortReason string `json:"abort_reason,omitempty"`
}

func newRunResult(now time.Time) *RunResult {
	return &RunResult{
		RunID:     uuid.New(),
		Errors:    []string{},
		Files:     []FileOutcome{},
		StartedAt: now,
	}
}

func (r *RunResult) add(out FileOutcome) {
	switch out.State {
	case domain.StateSkippedPreexisting:
		r.Skipped++
	case domain.StateUploadFailed:
		r.Failed++
		r.Errors = append(r.Errors, out.Name+": "+out.Error)
	default:
		r.Processed++
	}
	r.Files = append(r.Files, out)
}

func (r *RunResult) finish(now time.Time) {
	r.FinishedAt = now
	if r.Failed > 0 {
		r.Status = StatusFailed
	} else {
		r.Status = StatusCompleted
	}
}

func (r *RunResult) abort(now time.Time, err error) {
	r.FinishedAt = now
	r.Status = StatusAborted
	r.AbortReason = err.Error()
}

// Message summarizes why the run did not fully succeed, or "" when it did.
func (r *RunResult) Message() string {
	if r.AbortReason != "" {
		return r.AbortReason
	}
	if err := failureError(r); err != nil {
		return err.Error()
	}
	return ""
}

// Duration is how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
