package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
	"github.com/timmy/sportsclips/internal/source/registry"
)

// SourceHandler manages sources and their fetch runs.
type SourceHandler struct {
	registry  *registry.Registry
	sources   *repository.SourceRepository
	runs      *repository.RunRepository
	scheduler *schedule.Scheduler
	orgID     string
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(
	reg *registry.Registry,
	sources *repository.SourceRepository,
	runs *repository.RunRepository,
	scheduler *schedule.Scheduler,
	orgID string,
) *SourceHandler {
	return &SourceHandler{registry: reg, sources: sources, runs: runs, scheduler: scheduler, orgID: orgID}
}

// ScheduleRequest carries the schedule fields shared by sources and query definitions.
type ScheduleRequest struct {
	IsScheduled            bool                `json:"is_scheduled"`
	ScheduleType           domain.ScheduleType `json:"schedule_type"`
	CronExpression         string              `json:"cron_expression"`
	Timezone               string              `json:"timezone"`
	RefreshIntervalMinutes int                 `json:"refresh_interval_minutes"`
}

func (r ScheduleRequest) toDomain() domain.Schedule {
	s := domain.Schedule{
		IsScheduled:            r.IsScheduled,
		IsActive:               true,
		ScheduleType:           r.ScheduleType,
		CronExpression:         r.CronExpression,
		Timezone:               r.Timezone,
		RefreshIntervalMinutes: r.RefreshIntervalMinutes,
	}
	if s.ScheduleType == "" {
		s.ScheduleType = domain.ScheduleManual
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	return s
}

// firstRun is the initial next-run timestamp: due at once when scheduled.
func firstRun(s domain.Schedule) *time.Time {
	if !s.IsScheduled || s.ScheduleType == domain.ScheduleManual {
		return nil
	}
	now := time.Now().UTC()
	return &now
}

// CreateSourceRequest represents the create source API request.
type CreateSourceRequest struct {
	Name   string            `json:"name" binding:"required"`
	Type   domain.SourceType `json:"type" binding:"required"`
	Sport  string            `json:"sport"`
	Config domain.JSONMap    `json:"config"`
	ScheduleRequest
}

// Create handles POST /api/v1/sources. The config is validated by the adapter before
// anything is stored; blocking errors answer 422.
func (h *SourceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	src := &domain.Source{
		OrgID:    h.orgID,
		Name:     req.Name,
		Type:     req.Type,
		Sport:    req.Sport,
		Config:   req.Config,
		Schedule: req.ScheduleRequest.toDomain(),
	}
	if src.Config == nil {
		src.Config = domain.JSONMap{}
	}
	if msg := schedule.ValidateSchedule(src.Schedule); msg != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid schedule", "errors": []string{msg}})
		return
	}

	res, err := h.registry.ValidateSource(src)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := res.Err(); err != nil {
		respondError(c, err)
		return
	}

	src.NextFetchAt = firstRun(src.Schedule)
	if err := h.sources.Create(ctx, src); err != nil {
		respondError(c, err)
		return
	}

	logger.Audit(ctx, "source.created", logger.Fields{
		logger.FieldSourceID: src.ID,
		logger.FieldAdapter:  src.Type,
	})
	c.JSON(http.StatusCreated, gin.H{
		"source":   src,
		"warnings": res.Warnings,
	})
}

// List handles GET /api/v1/sources.
func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context(), h.orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

// Get handles GET /api/v1/sources/:id.
func (h *SourceHandler) Get(c *gin.Context) {
	src, err := h.sources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

// UpdateStatusRequest represents a pause or resume request.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE PAUSED"`
}

// UpdateStatus handles PATCH /api/v1/sources/:id/status.
func (h *SourceHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.sources.UpdateStatus(ctx, id, domain.SourceStatus(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	logger.Audit(ctx, "source.status_changed", logger.Fields{logger.FieldSourceID: id, logger.FieldStatus: req.Status})
	h.Get(c)
}

// Fetch handles POST /api/v1/sources/:id/fetch. It queues a manual run and answers 202.
func (h *SourceHandler) Fetch(c *gin.Context) {
	run, err := h.scheduler.TriggerSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// Runs handles GET /api/v1/sources/:id/runs.
func (h *SourceHandler) Runs(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.sources.GetByID(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	runs, err := h.runs.ListFetchRuns(ctx, id, queryLimit(c, 20, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}
