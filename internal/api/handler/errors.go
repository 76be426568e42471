package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/sportsclips/internal/api/middleware"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
	"github.com/timmy/sportsclips/internal/service"
	"github.com/timmy/sportsclips/internal/source"
)

// respondError maps service and repository errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var cfgErr *source.ConfigValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, schedule.ErrRunInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already queued or running"})
	case errors.Is(err, schedule.ErrCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSearchDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid config", "errors": cfgErr.Errors})
	default:
		middleware.GetLogger(c).WithError(err).
			WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	logger.CtxWarn(c.Request.Context(), "Invalid request: client_ip=%s, error=%v", c.ClientIP(), err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}

// queryLimit reads ?limit= bounded to [1,max], falling back to def.
func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
