package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Runner performs one sync run.
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}

// LastRun is the most recent run seen by a Scheduler.
type LastRun struct {
	Result *RunResult `json:"result"`
	Error  string     `json:"error,omitempty"`
}

// Scheduler triggers runs on an interval and on demand, never two at once.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	sem      *semaphore.Weighted
	log      zerolog.Logger

	mu   sync.RWMutex
	last *LastRun
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		sem:      semaphore.NewWeighted(1),
		log:      logger.Log.With().Str("component", "scheduler").Logger(),
	}
}

// WithLogger returns s logging to l.
func (s *Scheduler) WithLogger(l zerolog.Logger) *Scheduler {
	s.log = l
	return s
}

// Trigger runs a sync now, or returns ErrRunInProgress if one is running.
func (s *Scheduler) Trigger(ctx context.Context) (*RunResult, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	defer s.sem.Release(1)

	result, err := s.runner.Run(ctx)

	last := &LastRun{Result: result}
	if err != nil {
		last.Error = err.Error()
	}
	s.mu.Lock()
	s.last = last
	s.mu.Unlock()

	return result, err
}

// Last returns the most recent run, if any.
func (s *Scheduler) Last() (*LastRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// Start runs once immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.Trigger(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.log.Debug().Msg("previous run still in progress, skipping tick")
	case errors.Is(err, context.Canceled):
	default:
		s.log.Error().Err(err).Msg("scheduled sync run failed")
	}
}
