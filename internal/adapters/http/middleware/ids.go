// Package middleware holds the admin API's gin middleware: request and
// correlation IDs, caller claims, managed-thread binding, access logging,
// panic recovery and request deadlines.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
)

const (
	// HeaderRequestID identifies one hop.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID tracks one operator action across services.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID and ContextKeyCorrelationID are the gin keys.
	ContextKeyRequestID     = "request_id"
	ContextKeyCorrelationID = "correlation_id"

	// maxIDLength bounds caller-supplied IDs. They end up in logs and in
	// managed thread names.
	maxIDLength = 128
)

type idKey int

const (
	requestIDKey idKey = iota
	correlationIDKey
)

// idSource is one propagated identifier: where it is read from and where it
// is recorded.
type idSource struct {
	header string
	ginKey string
	ctxKey idKey
	log    func(context.Context, string) context.Context
}

var (
	requestIDs     = idSource{HeaderRequestID, ContextKeyRequestID, requestIDKey, logging.WithRequestID}
	correlationIDs = idSource{HeaderCorrelationID, ContextKeyCorrelationID, correlationIDKey, logging.WithCorrelationID}
)

// middleware keeps a well-formed incoming ID and otherwise generates a UUID.
// The ID is echoed on the response, set on the gin context and stored in the
// request context and its logger.
func (s idSource) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(s.header)
		if !wellFormedID(id) {
			id = uuid.NewString()
		}

		c.Set(s.ginKey, id)
		c.Header(s.header, id)

		ctx := context.WithValue(c.Request.Context(), s.ctxKey, id)
		c.Request = c.Request.WithContext(s.log(ctx, id))

		c.Next()
	}
}

func (s idSource) fromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(s.ctxKey).(string)

	return id
}

func wellFormedID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := range len(id) {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}

	return true
}

// RequestID propagates or originates X-Request-ID.
func RequestID() gin.HandlerFunc { return requestIDs.middleware() }

// CorrelationID propagates or originates X-Correlation-ID.
func CorrelationID() gin.HandlerFunc { return correlationIDs.middleware() }

// GetRequestID returns the request ID, or "" if RequestID did not run.
func GetRequestID(c *gin.Context) string { return c.GetString(ContextKeyRequestID) }

// GetCorrelationID returns the correlation ID, or "".
func GetCorrelationID(c *gin.Context) string { return c.GetString(ContextKeyCorrelationID) }

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string { return requestIDs.fromContext(ctx) }

// CorrelationIDFromContext returns the correlation ID stored in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string { return correlationIDs.fromContext(ctx) }
