package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/queue"
	"github.com/timmy/sportsclips/internal/repository"
)

type failingQueue struct {
	*queue.MemoryQueue
}

func (failingQueue) Enqueue(ctx context.Context, job queue.Job) error {
	return errors.New("redis unavailable")
}

type fixture struct {
	sources *repository.SourceRepository
	queries *repository.QueryDefinitionRepository
	runs    *repository.RunRepository
	queue   *queue.MemoryQueue
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.New().String() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &fixture{
		sources: repository.NewSourceRepository(db),
		queries: repository.NewQueryDefinitionRepository(db),
		runs:    repository.NewRunRepository(db),
		queue:   queue.NewMemoryQueue(),
		now:     time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) scheduler(q queue.Queue) *Scheduler {
	s := New(f.sources, f.queries, f.runs, q, nil, Config{ManualCooldown: 5 * time.Minute})
	s.SetClock(func() time.Time { return f.now })
	return s
}

func (f *fixture) dueQuery(t *testing.T) *domain.QueryDefinition {
	t.Helper()
	past := f.now.Add(-time.Minute)
	def := &domain.QueryDefinition{OrgID: "org", Name: "dunks", Sport: "nba", Keywords: domain.StringArray{"dunk"}, NextRunAt: &past}
	def.IsScheduled = true
	def.IsActive = true
	def.ScheduleType = domain.ScheduleHourly
	def.RefreshIntervalMinutes = 60
	require.NoError(t, f.queries.Create(context.Background(), def))
	return def
}

func (f *fixture) dueSource(t *testing.T) *domain.Source {
	t.Helper()
	past := f.now.Add(-time.Minute)
	src := &domain.Source{OrgID: "org", Name: "feed", Type: domain.SourceTypeRSSFeed, NextFetchAt: &past}
	src.IsScheduled = true
	src.IsActive = true
	src.ScheduleType = domain.ScheduleDaily
	require.NoError(t, f.sources.Create(context.Background(), src))
	return src
}

func TestRunOnce_EnqueuesDueEntities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	def := f.dueQuery(t)
	src := f.dueSource(t)

	res, err := f.scheduler(f.queue).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.QueriesEnqueued)
	assert.Equal(t, 1, res.SourcesEnqueued)

	n, err := f.queue.Len(ctx, queue.KindQueryRun)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	storedDef, err := f.queries.GetByID(ctx, def.ID)
	require.NoError(t, err)
	require.NotNil(t, storedDef.NextRunAt)
	assert.True(t, storedDef.NextRunAt.Equal(f.now.Add(time.Hour)))

	storedSrc, err := f.sources.GetByID(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, storedSrc.NextFetchAt)
	assert.True(t, storedSrc.NextFetchAt.Equal(f.now.AddDate(0, 0, 1)))

	job, err := f.queue.Dequeue(ctx, queue.KindQueryRun)
	require.NoError(t, err)
	run, err := f.runs.GetQueryRun(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusQueued, run.Status)
	assert.Equal(t, def.ID, run.QueryDefinitionID)
}

func TestRunOnce_NeverDoubleCreatesQueryRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	def := f.dueQuery(t)
	s := f.scheduler(f.queue)

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)

	// make it due again while the first run is still queued
	past := f.now.Add(-time.Minute)
	require.NoError(t, f.queries.SetNextRun(ctx, def.ID, &past))
	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.QueriesEnqueued)
	assert.Equal(t, 1, res.Skipped)

	runs, err := f.runs.ListQueryRuns(ctx, def.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.TriggerQuery(ctx, def.ID)
	assert.ErrorIs(t, err, ErrRunInFlight)
}

func TestRunOnce_EnqueueFailureMarksRunFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	def := f.dueQuery(t)

	res, err := f.scheduler(failingQueue{f.queue}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	runs, err := f.runs.ListQueryRuns(ctx, def.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "failed to enqueue")

	inFlight, err := f.runs.HasQueryRunInFlight(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, inFlight)
}

func TestRunOnce_ReapsStaleRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	def := f.dueQuery(t)
	s := f.scheduler(f.queue)

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)
	job, err := f.queue.Dequeue(ctx, queue.KindQueryRun)
	require.NoError(t, err)
	_, err = f.runs.StartQueryRun(ctx, job.ID, f.now)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Reaped)
	assert.Equal(t, 1, res.QueriesEnqueued, "the reaped definition is free to run again")

	old, err := f.runs.GetQueryRun(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, old.Status)
	assert.Equal(t, "run timed out", old.ErrorMessage)

	runs, err := f.runs.ListQueryRuns(ctx, def.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestTriggerSource_Cooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.dueSource(t)
	s := f.scheduler(f.queue)

	run, err := s.TriggerSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, run.Trigger)

	_, err = f.runs.StartFetchRun(ctx, run.ID, f.now)
	require.NoError(t, err)
	require.NoError(t, f.runs.FinishFetchRun(ctx, run.ID, domain.RunStatusSucceeded, 1, 1, "", f.now))

	f.now = f.now.Add(time.Minute)
	_, err = s.TriggerSource(ctx, src.ID)
	assert.ErrorIs(t, err, ErrCooldown)

	f.now = f.now.Add(5 * time.Minute)
	_, err = s.TriggerSource(ctx, src.ID)
	require.NoError(t, err)

	_, err = s.TriggerSource(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRequeueOrphans_AfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.dueSource(t)

	res, err := f.scheduler(f.queue).RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.SourcesEnqueued)

	// the in-process queue is gone after a restart; the run row is still QUEUED
	restarted := queue.NewMemoryQueue()
	s := f.scheduler(restarted)
	n, err := s.RequeueOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := restarted.Dequeue(ctx, queue.KindSourceFetch)
	require.NoError(t, err)
	assert.Equal(t, src.ID, job.EntityID)
	run, err := f.runs.GetFetchRun(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusQueued, run.Status)

	n, err = s.RequeueOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pending, err := restarted.Len(ctx, queue.KindSourceFetch)
	require.NoError(t, err)
	assert.Zero(t, pending, "the queue drops a run id it already delivered")
}

func TestRunOnce_ReapsOrphanedQueuedRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.dueSource(t)

	_, err := f.scheduler(f.queue).RunOnce(ctx)
	require.NoError(t, err)
	orphaned, err := f.runs.ListFetchRuns(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)

	// restart without requeueing, then let the source come due again
	s := f.scheduler(queue.NewMemoryQueue())
	f.now = f.now.Add(48 * time.Hour)

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Reaped)
	assert.Equal(t, 1, res.SourcesEnqueued)
	assert.Zero(t, res.Skipped)

	old, err := f.runs.GetFetchRun(ctx, orphaned[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, old.Status)
	assert.Equal(t, repository.ReapedQueuedMessage, old.ErrorMessage)

	f.now = f.now.Add(6 * time.Hour)
	_, err = s.TriggerSource(ctx, src.ID)
	assert.ErrorIs(t, err, ErrRunInFlight, "the freshly scheduled run is the one in flight")
}
