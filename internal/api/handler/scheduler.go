package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/schedule"
)

// SchedulerHandler exposes a single scheduling pass for cron-driven deployments.
type SchedulerHandler struct {
	scheduler *schedule.Scheduler
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(scheduler *schedule.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// Tick handles POST /api/v1/scheduler/tick.
func (h *SchedulerHandler) Tick(c *gin.Context) {
	result, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sources_enqueued": result.SourcesEnqueued,
		"queries_enqueued": result.QueriesEnqueued,
		"skipped":          result.Skipped,
		"failed":           result.Failed,
		"reaped":           result.Reaped,
	})
}
