package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/dto"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
)

// Recovery turns a handler panic into a 500 envelope. It must run first so
// it covers every later handler. The panic value is logged, never returned.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()
			traceID := dto.GetTraceID(c)

			logging.FromContextOr(ctx, logger).ErrorContext(ctx, "handler panicked",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("route", c.FullPath()),
				slog.String("method", c.Request.Method),
				slog.String("trace_id", traceID),
				slog.String("stack", string(debug.Stack())),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred").WithTraceID(traceID))
		}()

		c.Next()
	}
}
