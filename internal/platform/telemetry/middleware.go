package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jsamuelsen/managed-concurrency/internal/platform/telemetry"

// TraceIDHeader echoes the request's trace ID to the caller.
const TraceIDHeader = "X-Trace-ID"

type httpInstruments struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	active   metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Admin request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Admin requests served"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Admin requests in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &httpInstruments{duration: duration, total: total, active: active}, nil
}

// Middleware returns the tracing middleware followed by request metrics and
// the trace ID response header.
func Middleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), metricsMiddleware()}
}

func metricsMiddleware() gin.HandlerFunc {
	instruments, err := newHTTPInstruments(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		route := attribute.String("http.route", c.FullPath())
		method := attribute.String("http.method", c.Request.Method)

		if instruments != nil {
			instruments.active.Add(ctx, 1, metric.WithAttributes(method, route))
			defer instruments.active.Add(ctx, -1, metric.WithAttributes(method, route))
		}

		c.Next()

		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}

		if instruments != nil {
			attrs := metric.WithAttributes(method, route, attribute.Int("http.status_code", c.Writer.Status()))
			instruments.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			instruments.total.Add(ctx, 1, attrs)
		}
	}
}
