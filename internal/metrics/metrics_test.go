package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FetchRun("RSS_FEED", "SUCCEEDED", time.Now(), 3)
	m.FetchRun("RSS_FEED", "FAILED", time.Now(), 0)
	m.Enqueued("query_run")
	m.Matches(2)
	m.Matches(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRunsTotal.WithLabelValues("RSS_FEED", "SUCCEEDED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NewsItemsInserted.WithLabelValues("RSS_FEED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerEnqueued.WithLabelValues("query_run")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClipMatchesTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FetchRun("x", "y", time.Now(), 1)
		m.QueryRun("SUCCEEDED", time.Now())
		m.Enqueued("query_run")
		m.EntityFailed()
		m.Matches(1)
	})
}
