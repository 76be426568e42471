// Package schedule decides which sources and query definitions are due and enqueues their runs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/metrics"
	"github.com/timmy/sportsclips/internal/queue"
	"github.com/timmy/sportsclips/internal/repository"
)

var (
	// ErrRunInFlight is returned by manual triggers when a run is already QUEUED or RUNNING.
	ErrRunInFlight = repository.ErrRunInFlight

	// ErrCooldown is returned by manual triggers fired again within the cooldown window.
	ErrCooldown = errors.New("manual trigger cooldown active")
)

const (
	defaultTickInterval    = 60 * time.Second
	defaultStaleRunTimeout = 30 * time.Minute
	defaultManualCooldown  = 5 * time.Minute

	requeueBatch = 500
)

// Config tunes the scheduler.
type Config struct {
	TickInterval    time.Duration
	StaleRunTimeout time.Duration
	ManualCooldown  time.Duration
}

// TickResult summarizes one RunOnce pass.
type TickResult struct {
	SourcesEnqueued int
	QueriesEnqueued int
	Skipped         int
	Failed          int
	Reaped          int64
}

// Scheduler turns due entities into queued runs.
type Scheduler struct {
	sources *repository.SourceRepository
	queries *repository.QueryDefinitionRepository
	runs    *repository.RunRepository
	queue   queue.Queue
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

// New creates a Scheduler. m may be nil.
func New(
	sources *repository.SourceRepository,
	queries *repository.QueryDefinitionRepository,
	runs *repository.RunRepository,
	q queue.Queue,
	m *metrics.Metrics,
	cfg Config,
) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.StaleRunTimeout <= 0 {
		cfg.StaleRunTimeout = defaultStaleRunTimeout
	}
	// zero takes the default, negative disables the cooldown
	if cfg.ManualCooldown == 0 {
		cfg.ManualCooldown = defaultManualCooldown
	}
	return &Scheduler{
		sources: sources,
		queries: queries,
		runs:    runs,
		queue:   q,
		metrics: m,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs RunOnce on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "scheduler")
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	logger.CtxInfo(ctx, "[Scheduler] Started with tick interval %s", s.cfg.TickInterval)
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Scheduler tick failed")
		}
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "[Scheduler] Stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reaps stale runs, then enqueues every due source and query definition.
// A failure on one entity is logged and counted without stopping the pass.
// Returns:
//   - TickResult: counts of enqueued, skipped, failed and reaped entities.
//   - error: non-nil only when the due lists cannot be loaded.
func (s *Scheduler) RunOnce(ctx context.Context) (TickResult, error) {
	var result TickResult
	now := s.now()
	start := time.Now()

	reaped, err := s.runs.ReapStaleRuns(ctx, now.Add(-s.cfg.StaleRunTimeout), now)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to reap stale runs")
	} else if reaped > 0 {
		result.Reaped = reaped
		logger.Audit(ctx, "runs.reaped", logger.Fields{logger.FieldCount: reaped})
	}

	sources, err := s.sources.ListDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list due sources: %w", err)
	}
	for i := range sources {
		switch _, err := s.enqueueSource(ctx, &sources[i], domain.TriggerScheduled, now); {
		case err == nil:
			result.SourcesEnqueued++
		case errors.Is(err, ErrRunInFlight):
			result.Skipped++
		default:
			result.Failed++
			s.metrics.EntityFailed()
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldSourceID, sources[i].ID).
				Error("Failed to schedule source")
		}
	}

	defs, err := s.queries.ListDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list due queries: %w", err)
	}
	for i := range defs {
		switch _, err := s.enqueueQuery(ctx, &defs[i], domain.TriggerScheduled, now); {
		case err == nil:
			result.QueriesEnqueued++
		case errors.Is(err, ErrRunInFlight):
			result.Skipped++
		default:
			result.Failed++
			s.metrics.EntityFailed()
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldQueryID, defs[i].ID).
				Error("Failed to schedule query")
		}
	}

	logger.With(logger.Fields{
		"sources_enqueued": result.SourcesEnqueued,
		"queries_enqueued": result.QueriesEnqueued,
		"skipped":          result.Skipped,
		"failed":           result.Failed,
	}).WithDuration(start).Debug(ctx, "Scheduler tick complete")

	return result, nil
}

// RequeueOrphans hands every QUEUED run back to the queue. Call it once at startup: runs
// queued by a previous process on the in-process queue have no message left to pick them
// up. The queue deduplicates by run id, so runs that are still pending are not doubled.
// Returns:
//   - int: number of runs offered to the queue.
//   - error: non-nil when the queued runs cannot be listed.
func (s *Scheduler) RequeueOrphans(ctx context.Context) (int, error) {
	now := s.now()
	offered := 0

	fetchRuns, err := s.runs.ListQueuedFetchRuns(ctx, requeueBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list queued fetch runs: %w", err)
	}
	for _, run := range fetchRuns {
		job := queue.Job{ID: run.ID, Kind: queue.KindSourceFetch, EntityID: run.SourceID, OrgID: run.OrgID, EnqueuedAt: now}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldRunID, run.ID).Warn("Failed to requeue fetch run")
			continue
		}
		offered++
	}

	queryRuns, err := s.runs.ListQueuedQueryRuns(ctx, requeueBatch)
	if err != nil {
		return offered, fmt.Errorf("failed to list queued query runs: %w", err)
	}
	for _, run := range queryRuns {
		job := queue.Job{ID: run.ID, Kind: queue.KindQueryRun, EntityID: run.QueryDefinitionID, OrgID: run.OrgID, EnqueuedAt: now}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldRunID, run.ID).Warn("Failed to requeue query run")
			continue
		}
		offered++
	}

	if offered > 0 {
		logger.Audit(ctx, "runs.requeued", logger.Fields{logger.FieldCount: offered})
	}
	return offered, nil
}

// TriggerSource queues a manual fetch of a source.
// Returns:
//   - *domain.SourceFetchRun: the queued run.
//   - error: ErrCooldown, ErrRunInFlight, repository.ErrNotFound or an enqueue failure.
func (s *Scheduler) TriggerSource(ctx context.Context, id string) (*domain.SourceFetchRun, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.coolingDown(src.LastManualTriggerAt, now) {
		return nil, ErrCooldown
	}
	run, err := s.enqueueSource(ctx, src, domain.TriggerManual, now)
	if err != nil {
		return nil, err
	}
	if err := s.sources.SetManualTrigger(ctx, src.ID, now); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record manual trigger time")
	}
	return run, nil
}

// TriggerQuery queues a manual run of a query definition.
func (s *Scheduler) TriggerQuery(ctx context.Context, id string) (*domain.QueryRun, error) {
	def, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.coolingDown(def.LastManualTriggerAt, now) {
		return nil, ErrCooldown
	}
	run, err := s.enqueueQuery(ctx, def, domain.TriggerManual, now)
	if err != nil {
		return nil, err
	}
	if err := s.queries.SetManualTrigger(ctx, def.ID, now); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record manual trigger time")
	}
	return run, nil
}

func (s *Scheduler) coolingDown(last *time.Time, now time.Time) bool {
	return last != nil && s.cfg.ManualCooldown > 0 && now.Sub(*last) < s.cfg.ManualCooldown
}

func (s *Scheduler) enqueueSource(ctx context.Context, src *domain.Source, trigger domain.RunTrigger, now time.Time) (*domain.SourceFetchRun, error) {
	run := &domain.SourceFetchRun{
		OrgID:    src.OrgID,
		SourceID: src.ID,
		Trigger:  trigger,
		QueuedAt: now,
	}
	if err := s.runs.CreateFetchRun(ctx, run); err != nil {
		return nil, err
	}

	job := queue.Job{ID: run.ID, Kind: queue.KindSourceFetch, EntityID: src.ID, OrgID: src.OrgID, EnqueuedAt: now}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		msg := "failed to enqueue: " + err.Error()
		if ferr := s.runs.FailFetchRun(ctx, run.ID, msg, now); ferr != nil {
			logger.FromContext(ctx).WithError(ferr).WithField(logger.FieldRunID, run.ID).Error("Failed to mark run failed")
		}
		return nil, fmt.Errorf("source %s: %s", src.ID, msg)
	}
	s.metrics.Enqueued(string(queue.KindSourceFetch))

	if trigger == domain.TriggerScheduled {
		if err := s.sources.SetNextFetch(ctx, src.ID, NextRun(SpecOf(src.Schedule), now)); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldSourceID, src.ID).Warn("Failed to update next fetch time")
		}
	}

	logger.Audit(ctx, "source_fetch_run.enqueued", logger.Fields{
		logger.FieldSourceID: src.ID,
		logger.FieldRunID:    run.ID,
		"trigger":            trigger,
	})
	return run, nil
}

func (s *Scheduler) enqueueQuery(ctx context.Context, def *domain.QueryDefinition, trigger domain.RunTrigger, now time.Time) (*domain.QueryRun, error) {
	run := &domain.QueryRun{
		OrgID:             def.OrgID,
		QueryDefinitionID: def.ID,
		Trigger:           trigger,
		QueuedAt:          now,
	}
	if err := s.runs.CreateQueryRun(ctx, run); err != nil {
		return nil, err
	}

	job := queue.Job{ID: run.ID, Kind: queue.KindQueryRun, EntityID: def.ID, OrgID: def.OrgID, EnqueuedAt: now}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		msg := "failed to enqueue: " + err.Error()
		if ferr := s.runs.FailQueryRun(ctx, run.ID, msg, now); ferr != nil {
			logger.FromContext(ctx).WithError(ferr).WithField(logger.FieldRunID, run.ID).Error("Failed to mark run failed")
		}
		return nil, fmt.Errorf("query %s: %s", def.ID, msg)
	}
	s.metrics.Enqueued(string(queue.KindQueryRun))

	if trigger == domain.TriggerScheduled {
		if err := s.queries.SetNextRun(ctx, def.ID, NextRun(SpecOf(def.Schedule), now)); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldQueryID, def.ID).Warn("Failed to update next run time")
		}
	}

	logger.Audit(ctx, "query_run.enqueued", logger.Fields{
		logger.FieldQueryID: def.ID,
		logger.FieldRunID:   run.ID,
		"trigger":           trigger,
	})
	return run, nil
}
