// internal/api/handlers/sync_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/andresuchdata/docsync/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// SyncTrigger starts runs and remembers the last one.
type SyncTrigger interface {
	Trigger(ctx context.Context) (*pipeline.RunResult, error)
	Last() (*pipeline.LastRun, bool)
}

// RunLedger reads recorded runs.
type RunLedger interface {
	ListRuns(ctx context.Context, limit int) ([]pipeline.RunSummary, error)
	RunOutcomes(ctx context.Context, runID uuid.UUID) ([]domain.FileOutcome, error)
}

type SyncHandler struct {
	trigger SyncTrigger
	ledger  RunLedger
}

// NewSyncHandler creates a handler; ledger may be nil when the ledger is disabled.
func NewSyncHandler(trigger SyncTrigger, ledger RunLedger) *SyncHandler {
	return &SyncHandler{trigger: trigger, ledger: ledger}
}

type syncResponse struct {
	Result *pipeline.RunResult `json:"result"`
	Error  string              `json:"error,omitempty"`
}

// TriggerSync runs a sync synchronously and returns its result. A failed
// run still returns the full result next to the error.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	// a client disconnect must not cut a run short
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.trigger.Trigger(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("manual sync failed")
		c.JSON(http.StatusInternalServerError, syncResponse{Result: result, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, syncResponse{Result: result})
}

// LastSync returns the most recent run seen by this process.
func (h *SyncHandler) LastSync(c *gin.Context) {
	last, ok := h.trigger.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sync has run yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// ListRuns returns recent runs from the ledger
func (h *SyncHandler) ListRuns(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run ledger is disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.ledger.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sync runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sync runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// RunOutcomes returns the per-file outcomes of one recorded run
func (h *SyncHandler) RunOutcomes(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run ledger is disabled"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	outcomes, err := h.ledger.RunOutcomes(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("run_id", id.String()).Msg("failed to load run outcomes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run outcomes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "files": outcomes})
}
