// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sportsclips"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchRunsTotal     *prometheus.CounterVec
	QueryRunsTotal     *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	SchedulerEnqueued  *prometheus.CounterVec
	ClipMatchesTotal   prometheus.Counter
	NewsItemsInserted  *prometheus.CounterVec
	SchedulerTickFails prometheus.Counter
}

// New creates and registers the collectors on reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_runs_total",
			Help:      "Source fetch runs by adapter and terminal status",
		}, []string{"adapter", "status"}),
		QueryRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_runs_total",
			Help:      "Query runs by terminal status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of fetch and query runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"kind"}),
		SchedulerEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_enqueued_total",
			Help:      "Jobs enqueued by the scheduler by kind",
		}, []string{"kind"}),
		ClipMatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clip_matches_total",
			Help:      "Clip matches persisted by the pairing matcher",
		}),
		NewsItemsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_items_inserted_total",
			Help:      "New news items stored by adapter",
		}, []string{"adapter"}),
		SchedulerTickFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_entity_failures_total",
			Help:      "Entities that failed to schedule during a tick",
		}),
	}
}

// FetchRun records a finished fetch run.
func (m *Metrics) FetchRun(adapter, status string, started time.Time, newItems int) {
	if m == nil {
		return
	}
	m.FetchRunsTotal.WithLabelValues(adapter, status).Inc()
	m.RunDuration.WithLabelValues("source_fetch").Observe(time.Since(started).Seconds())
	if newItems > 0 {
		m.NewsItemsInserted.WithLabelValues(adapter).Add(float64(newItems))
	}
}

// QueryRun records a finished query run.
func (m *Metrics) QueryRun(status string, started time.Time) {
	if m == nil {
		return
	}
	m.QueryRunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues("query_run").Observe(time.Since(started).Seconds())
}

// Enqueued records a job handed to the queue.
func (m *Metrics) Enqueued(kind string) {
	if m == nil {
		return
	}
	m.SchedulerEnqueued.WithLabelValues(kind).Inc()
}

// EntityFailed records an entity the scheduler could not process.
func (m *Metrics) EntityFailed() {
	if m == nil {
		return
	}
	m.SchedulerTickFails.Inc()
}

// Matches records persisted clip matches.
func (m *Metrics) Matches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ClipMatchesTotal.Add(float64(n))
}
