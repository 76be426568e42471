package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/logger"
)

func newEngine(cfg CORSConfig, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware(log), CORS(cfg))
	r.GET("/ping", func(c *gin.Context) {
		GetLogger(c).Info("handled")
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestCORS(t *testing.T) {
	r := newEngine(CORSConfig{AllowedOrigins: []string{"https://admin.example.com/"}}, nil)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "allowed origin", method: http.MethodGet, origin: "https://admin.example.com", wantStatus: http.StatusOK, wantOrigin: "https://admin.example.com"},
		{name: "other origin", method: http.MethodGet, origin: "https://evil.example.com", wantStatus: http.StatusOK},
		{name: "allowed preflight", method: http.MethodOptions, origin: "https://admin.example.com", wantStatus: http.StatusNoContent, wantOrigin: "https://admin.example.com"},
		{name: "refused preflight", method: http.MethodOptions, origin: "https://evil.example.com", wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_WildcardNeverAllowsCredentials(t *testing.T) {
	r := newEngine(CORSConfig{AllowedOrigins: []string{"*"}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "debug", Format: "json", Output: &buf})
	r := newEngine(CORSConfig{}, log)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.GreaterOrEqual(t, strings.Count(buf.String(), `"request_id":"req-123"`), 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader), "a request id is generated when absent")
}
