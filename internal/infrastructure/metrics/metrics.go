package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lobby"

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeAborted = "aborted"
	OutcomeSkipped = "skipped"
)

// Metrics defines our Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	janitorRuns         *prometheus.CounterVec
	janitorReclaimed    prometheus.Counter
	janitorFailures     prometheus.Counter
	janitorOrphans      prometheus.Counter
	janitorRunDuration  prometheus.Histogram
	roomsDeletedOnLeave prometheus.Counter
	storeErrors         *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		janitorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_runs_total",
			Help:      "Sweep runs by outcome.",
		}, []string{"outcome"}),
		janitorReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_rooms_reclaimed_total",
			Help:      "Stale rooms deleted by the sweep.",
		}),
		janitorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_room_failures_total",
			Help:      "Rooms the sweep selected but failed to delete.",
		}),
		janitorOrphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_orphans_reclaimed_total",
			Help:      "Room subtrees without a room document deleted by the sweep.",
		}),
		janitorRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "janitor_run_duration_seconds",
			Help:      "Wall time of a sweep run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		roomsDeletedOnLeave: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_deleted_on_leave_total",
			Help:      "Rooms deleted by their last leaving member.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operation_errors_total",
			Help:      "Failed document store operations.",
		}, []string{"op"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.janitorRuns,
		m.janitorReclaimed,
		m.janitorFailures,
		m.janitorOrphans,
		m.janitorRunDuration,
		m.roomsDeletedOnLeave,
		m.storeErrors,
		m.requestDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) JanitorRun(outcome string, reclaimed, failed, orphans int, took time.Duration) {
	m.janitorRuns.WithLabelValues(outcome).Inc()
	m.janitorReclaimed.Add(float64(reclaimed))
	m.janitorFailures.Add(float64(failed))
	m.janitorOrphans.Add(float64(orphans))
	m.janitorRunDuration.Observe(took.Seconds())
}

func (m *Metrics) RoomDeletedOnLeave() {
	m.roomsDeletedOnLeave.Inc()
}

func (m *Metrics) StoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, took time.Duration) {
	m.requestDuration.WithLabelValues(method, route, status).Observe(took.Seconds())
}
