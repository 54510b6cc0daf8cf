package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/shared/metrics"
	"receipts-backend/internal/shared/server/respond"
	"receipts-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 internal_error. The log line carries the recompute
// run ID when the handler had already set one. If the handler had started writing, the response
// is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"route":      route,
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			}
			if runID := c.GetString(RunIDKey); runID != "" {
				fields["run_id"] = runID
			}
			telemetry.Error("panic", fields)
			metrics.IncHandlerPanic(route)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
