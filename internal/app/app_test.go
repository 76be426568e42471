package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/queue"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database = config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.New().String() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}
	return cfg
}

func TestNew_DefaultsToInProcessBackends(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &queue.MemoryQueue{}, a.Queue)
	assert.NotNil(t, a.Scheduler)
	assert.NotNil(t, a.Fetch)
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Pairing)
	assert.NotNil(t, a.Search)
	assert.NotEmpty(t, a.Registry.Metadata())

	families, err := a.Gatherer.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &queue.RedisQueue{}, a.Queue)
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestNew_UnknownAnalysisProviderFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.Enabled = true
	cfg.Analysis.Provider = "nope"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNew_TranscriptArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.Type = "memory"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	a.Close()

	cfg = testConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.Type = "ftp"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "storage")
}

func TestWorkersExecuteManualFetch(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>Celtics trade for guard</title><link>https://example.com/1</link><guid>g1</guid></item>
<item><title>Lakers star out with ankle injury</title><link>https://example.com/2</link><guid>g2</guid></item>
</channel></rss>`))
	}))
	defer feed.Close()

	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pool := a.Workers()
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	src := &domain.Source{
		OrgID:    a.Config.Server.OrgID,
		Name:     "feed",
		Type:     domain.SourceTypeRSSFeed,
		Sport:    "basketball",
		Config:   domain.JSONMap{"feedUrl": feed.URL},
		Schedule: domain.Schedule{IsActive: true, ScheduleType: domain.ScheduleManual, Timezone: "UTC"},
	}
	require.NoError(t, a.Sources.Create(ctx, src))

	run, err := a.Scheduler.TriggerSource(ctx, src.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := a.Runs.GetFetchRun(context.Background(), run.ID)
		return err == nil && got.Status == domain.RunStatusSucceeded
	}, 5*time.Second, 20*time.Millisecond)

	items, err := a.News.ListBySource(context.Background(), src.ID, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
