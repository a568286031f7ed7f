package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/ports"
)

// ContextKeyThread is the gin context key for the request's managed thread.
const ContextKeyThread = "managed_thread"

// BindThread gives each request its own managed thread so handlers can set
// ambient state and submit work that captures it. The caller's claims, when
// present, become the thread's security context. The thread is discarded
// with the request.
func BindThread(security ports.SecurityContextManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := "http"
		if id := RequestIDFromContext(c.Request.Context()); id != "" {
			name = "http-" + id
		}

		thread := domain.NewThread(name)
		ctx := ports.WithThread(c.Request.Context(), thread)

		if sc := GetClaims(c).SecurityContext(); sc != nil && security != nil {
			security.SetSecurityContext(ctx, sc)
		}

		c.Set(ContextKeyThread, thread)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetThread returns the request's managed thread, or nil.
func GetThread(c *gin.Context) *domain.Thread {
	thread, _ := c.Value(ContextKeyThread).(*domain.Thread)
	return thread
}
