// Package metrics exposes Prometheus collectors for context propagation and
// the managed executor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "managed_concurrency"

// Metrics records protocol and executor events. It satisfies the context
// provider's Recorder and the executor's TaskRecorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	captures     prometheus.Counter
	installs     *prometheus.CounterVec
	restores     prometheus.Counter
	txCleanups   *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec
	busyWorkers  *prometheus.GaugeVec
}

// New registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry; the service passes the default registry.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,

		captures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_captures_total",
			Help:      "Contexts captured at submission.",
		}),
		installs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_installs_total",
			Help:      "Context install attempts by outcome.",
		}, []string{"outcome"}),
		restores: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_restores_total",
			Help:      "Contexts restored after task execution.",
		}),
		txCleanups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_cleanups_total",
			Help:      "Transactions found on the thread at restore, by action taken.",
		}, []string{"outcome"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Managed tasks by executor and outcome.",
		}, []string{"executor", "outcome"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from task start to completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"executor"}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tasks waiting for a worker.",
		}, []string{"executor"}),
		busyWorkers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Workers currently running a task.",
		}, []string{"executor"}),
	}
}

// Captured records a capture.
func (m *Metrics) Captured() { m.captures.Inc() }

// Installed records an install attempt.
func (m *Metrics) Installed(outcome string) { m.installs.WithLabelValues(outcome).Inc() }

// Restored records a restore.
func (m *Metrics) Restored() { m.restores.Inc() }

// TxCleanup records the transaction action taken at restore.
func (m *Metrics) TxCleanup(outcome string) { m.txCleanups.WithLabelValues(outcome).Inc() }

// TaskFinished records a task's outcome and, when it ran, its duration.
func (m *Metrics) TaskFinished(executor, outcome string, d time.Duration) {
	m.tasks.WithLabelValues(executor, outcome).Inc()

	if d > 0 {
		m.taskDuration.WithLabelValues(executor).Observe(d.Seconds())
	}
}

// QueueDepth sets the number of queued tasks.
func (m *Metrics) QueueDepth(executor string, n int) {
	m.queueDepth.WithLabelValues(executor).Set(float64(n))
}

// WorkerBusy adjusts the busy-worker gauge by delta.
func (m *Metrics) WorkerBusy(executor string, delta int) {
	m.busyWorkers.WithLabelValues(executor).Add(float64(delta))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
