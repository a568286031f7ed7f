package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout bounds the request context by d. It never writes a response:
// handlers waiting on futures see the deadline and answer TIMEOUT
// themselves. Routes listed in exempt, matched by their gin pattern, run
// without a deadline.
func Timeout(d time.Duration, exempt ...string) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		for _, route := range exempt {
			if c.FullPath() == route {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
