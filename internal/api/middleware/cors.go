package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders  = "Content-Type, Accept, Authorization, X-Request-ID"
	corsAllowMethods  = "GET, POST, PATCH, OPTIONS"
	corsExposeHeaders = "X-Request-ID"
	corsMaxAge        = "600"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

// CORS lets the admin UI call the API from its own origin. Requests without an Origin
// header pass through untouched; disallowed origins get no CORS headers and preflights
// from them are refused.
func CORS(config CORSConfig) gin.HandlerFunc {
	allowed := make(map[string]bool, len(config.AllowedOrigins))
	allowAll := config.AllowAllOrigins
	for _, o := range config.AllowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		preflight := c.Request.Method == http.MethodOptions

		switch {
		case allowAll:
			// credentials are never sent with a wildcard origin
			h.Set("Access-Control-Allow-Origin", "*")
		case allowed[strings.ToLower(origin)]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		default:
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		if preflight {
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
