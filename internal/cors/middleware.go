package cors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const preflightMaxAge = "86400"

// Middleware reflects the exact Origin for allowed origins (never *), sets
// Vary: Origin, and short-circuits preflight requests with 204. Disallowed
// or absent origins get no CORS headers; the request itself still runs so
// non-browser clients are unaffected.
func Middleware(allowlist []Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Header("Vary", "Origin")

		if origin != "" && IsAllowed(origin, allowlist) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-AFFCD-Signature, X-AFFCD-Timestamp")
			c.Header("Access-Control-Max-Age", preflightMaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
