package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/andresuchdata/docsync/internal/drive"
	"github.com/andresuchdata/docsync/internal/storage"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/rs/zerolog"
)

const recordTimeout = 10 * time.Second

// Orchestrator moves new PDFs from the source folder into the object store,
// one file at a time in listing order.
type Orchestrator struct {
	source   Source
	store    storage.ObjectStore
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(source Source, store storage.ObjectStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source: source,
		store:  store,
		log:    logger.Log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one sweep. The result is always returned, also together
// with an error; the error is non-nil when any file failed, when listing
// or authorization failed, or when ctx was cancelled between files.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := newRunResult(o.now())
	log := o.log.With().Str("run_id", result.RunID.String()).Logger()

	files, err := o.source.ListFiles(ctx)
	if err != nil {
		return result, o.abort(ctx, log, result, fmt.Errorf("list source files: %w", err))
	}

	if len(files) == 0 {
		result.finish(o.now())
		log.Info().Msg("no new files to sync")
		return result, nil
	}

	log.Info().Int("files", len(files)).Msg("starting sync run")

	if err := o.store.Authorize(ctx); err != nil {
		return result, o.abort(ctx, log, result, fmt.Errorf("authorize destination: %w", err))
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("remaining", len(files)-len(result.Files)).Msg("sync run interrupted")
			return result, o.abort(ctx, log, result, err)
		}

		out, fatal := o.processFile(ctx, log, f)
		result.add(out)

		if fatal != nil {
			log.Error().Err(fatal).Msg("credential failure, aborting run")
			return result, o.abort(ctx, log, result, fmt.Errorf("run aborted: %w", fatal))
		}
	}

	result.finish(o.now())
	log.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.Duration()).
		Msg("sync run finished")
	o.record(ctx, log, result)

	return result, failureError(result)
}

// processFile never panics or returns per-file errors; only a credential
// failure that dooms the rest of the run comes back as an error.
func (o *Orchestrator) processFile(ctx context.Context, log zerolog.Logger, f domain.SourceFile) (FileOutcome, error) {
	out := FileOutcome{FileID: f.ID, Name: f.Name, State: domain.StateDiscovered}
	flog := log.With().Str("file_id", f.ID).Str("file", f.Name).Logger()

	if o.store.Exists(ctx, storage.ObjectName(f.ID)) {
		out.State = domain.StateSkippedPreexisting
		flog.Info().Msg("already archived, skipping upload")
		o.relocate(ctx, flog, f, &out)
		return out, nil
	}

	if f.ModifiedTime.IsZero() {
		out.State = domain.StateUploadFailed
		out.Error = "missing modified time, cannot derive object key"
		flog.Error().Msg("file has no modified time")
		return out, nil
	}

	out.State = domain.StateUploading
	data, err := o.source.Content(ctx, f.ID)
	if err != nil {
		out.State = domain.StateUploadFailed
		out.Error = fmt.Sprintf("content fetch failed: %v", err)
		flog.Error().Err(err).Msg("failed to fetch file content")
		return out, nil
	}

	upload := o.store.Upload(ctx, storage.UploadInput{
		FileID:       f.ID,
		FileName:     f.Name,
		Data:         data,
		ContentType:  f.MimeType,
		ModifiedTime: f.ModifiedTime,
	})
	out.Attempts = upload.Attempts
	if !upload.OK() {
		out.State = domain.StateUploadFailed
		out.Error = upload.Err.Error()
		flog.Error().Err(upload.Err).Int("attempts", upload.Attempts).Msg("upload failed")
		if auth.IsFatal(upload.Err) {
			return out, upload.Err
		}
		return out, nil
	}

	out.State = domain.StateUploaded
	out.ObjectPath = upload.Path
	flog.Info().Str("path", upload.Path).Int("attempts", upload.Attempts).Msg("uploaded")

	o.relocate(ctx, flog, f, &out)
	switch {
	case out.Relocated:
		out.State = domain.StateRelocated
	case out.RelocationError != "":
		out.State = domain.StateRelocateFailed
	}
	return out, nil
}

// relocate is best effort: failures are recorded on out and logged.
func (o *Orchestrator) relocate(ctx context.Context, log zerolog.Logger, f domain.SourceFile, out *FileOutcome) {
	err := o.source.Relocate(ctx, f.ID)
	switch {
	case err == nil:
		out.Relocated = true
		log.Debug().Msg("moved to archive folder")
	case errors.Is(err, drive.ErrNoArchiveFolder):
		log.Debug().Msg("no archive folder configured, leaving file in place")
	default:
		out.RelocationError = err.Error()
		log.Warn().Err(err).Msg("failed to move file to archive folder")
	}
}

// abort marks the run as stopped early, records it and returns err.
func (o *Orchestrator) abort(ctx context.Context, log zerolog.Logger, result *RunResult, err error) error {
	result.abort(o.now(), err)
	o.record(ctx, log, result)
	return err
}

func (o *Orchestrator) record(ctx context.Context, log zerolog.Logger, result *RunResult) {
	if o.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := o.recorder.RecordRun(ctx, result); err != nil {
		log.Warn().Err(err).Msg("failed to record sync run")
	}
}
