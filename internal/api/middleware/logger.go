package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/timmy/sportsclips/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const ginLoggerKey = "logger"

// quietPaths are polled by probes and scrapers; their successes log at debug.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// LoggerMiddleware tags every request with a request id (reusing an incoming X-Request-ID)
// and stores a logger carrying it in both the request context and the gin context.
// One summary line is written per request, at a level that follows the response status.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetDefault()
	}
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)

		reqLog := log.WithFields(logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		ctx := reqLog.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, reqLog)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		entry := logger.With(logger.Fields{
			logger.FieldStatus: status,
			"route":            route,
			"client_ip":        c.ClientIP(),
			"size":             c.Writer.Size(),
		}).WithDuration(start)
		if len(c.Errors) > 0 {
			entry = entry.With(logger.Fields{"gin_errors": c.Errors.String()})
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(ctx, "%s %s", c.Request.Method, c.Request.URL.RequestURI())
		case status >= http.StatusBadRequest:
			entry.Warn(ctx, "%s %s", c.Request.Method, c.Request.URL.RequestURI())
		case quietPaths[c.Request.URL.Path]:
			entry.Debug(ctx, "%s %s", c.Request.Method, c.Request.URL.RequestURI())
		default:
			entry.Info(ctx, "%s %s", c.Request.Method, c.Request.URL.RequestURI())
		}
	}
}

// GetLogger returns the request logger set by LoggerMiddleware, or whatever the request
// context carries when the middleware did not run.
func GetLogger(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
