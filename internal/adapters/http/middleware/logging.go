package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
)

// Logging writes one access line per request once it completes. Probe
// endpoints under /-/ and quietPaths are not logged.
func Logging(logger *slog.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if quiet[path] || strings.HasPrefix(path, "/-/") {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", c.Writer.Size()),
			slog.String("client_ip", c.ClientIP()),
		}

		if claims := GetClaims(c); claims != nil && claims.Subject != "" {
			attrs = append(attrs, slog.String("principal", claims.Subject))
		}

		if thread := GetThread(c); thread != nil {
			attrs = append(attrs, slog.String("thread", thread.Name()))
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		ctx := c.Request.Context()
		logging.FromContextOr(ctx, logger).LogAttrs(ctx, accessLevel(status), "request completed", attrs...)
	}
}

func accessLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
