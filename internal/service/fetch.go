package service

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
	"github.com/timmy/sportsclips/internal/source"
)

// AdapterLookup resolves the adapter for a source type.
type AdapterLookup interface {
	Lookup(t domain.SourceType) (source.Adapter, error)
}

// FetchService executes source fetch runs.
type FetchService struct {
	adapters AdapterLookup
	sources  *repository.SourceRepository
	runs     *repository.RunRepository
	news     *repository.NewsRepository
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewFetchService creates a FetchService. m may be nil.
func NewFetchService(
	adapters AdapterLookup,
	sources *repository.SourceRepository,
	runs *repository.RunRepository,
	news *repository.NewsRepository,
	m *metrics.Metrics,
) *FetchService {
	return &FetchService{
		adapters: adapters,
		sources:  sources,
		runs:     runs,
		news:     news,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Used by tests.
func (s *FetchService) SetClock(now func() time.Time) {
	s.now = now
}

// FetchOutcome summarizes one executed fetch run.
type FetchOutcome struct {
	RunID        string
	Status       domain.RunStatus
	ItemsFetched int
	NewItems     int
	Odds         int
	Results      int
}

// HandleJob is the queue.Handler for source_fetch jobs. The job id is the run id.
func (s *FetchService) HandleJob(ctx context.Context, job queue.Job) error {
	_, err := s.ExecuteRun(ctx, job.ID)
	return err
}

// ExecuteRun runs a QUEUED SourceFetchRun to completion.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: id of the run created by the scheduler.
// Returns:
//   - *FetchOutcome: terminal status and counters.
//   - error: the fetch error when the adapter failed, or a store error.
func (s *FetchService) ExecuteRun(ctx context.Context, runID string) (*FetchOutcome, error) {
	ctx = logger.SetRunID(ctx, runID)
	run, err := s.runs.GetFetchRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fetch run: %w", err)
	}
	ctx = logger.WithField(ctx, logger.FieldSourceID, run.SourceID)

	started := s.now()
	ok, err := s.runs.StartFetchRun(ctx, runID, started)
	if err != nil {
		return nil, fmt.Errorf("failed to start fetch run: %w", err)
	}
	if !ok {
		logger.CtxWarn(ctx, "Fetch run %s is no longer queued, skipping", runID)
		return &FetchOutcome{RunID: runID, Status: run.Status}, nil
	}

	src, err := s.sources.GetByID(ctx, run.SourceID)
	if err != nil {
		if ferr := s.runs.FailFetchRun(ctx, runID, "source not found", s.now()); ferr != nil {
			logger.FromContext(ctx).WithError(ferr).Error("Failed to mark fetch run failed")
		}
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	ctx = logger.WithField(ctx, logger.FieldAdapter, string(src.Type))

	if src.Status == domain.SourceStatusPaused || !src.IsActive {
		if err := s.runs.FinishFetchRun(ctx, runID, domain.RunStatusSkipped, 0, 0, "source paused", s.now()); err != nil {
			return nil, err
		}
		s.metrics.FetchRun(string(src.Type), string(domain.RunStatusSkipped), started, 0)
		return &FetchOutcome{RunID: runID, Status: domain.RunStatusSkipped}, nil
	}

	adapter, err := s.adapters.Lookup(src.Type)
	if err != nil {
		return s.fail(ctx, src, runID, started, err)
	}

	result, err := adapter.Fetch(ctx, src, source.FetchOptions{Since: src.LastFetchAt})
	if err != nil {
		return s.fail(ctx, src, runID, started, err)
	}

	items := s.toNewsItems(src, result.Items)
	inserted, err := s.news.InsertNew(ctx, items)
	if err != nil {
		return s.fail(ctx, src, runID, started, fmt.Errorf("failed to store news items: %w", err))
	}

	outcome := &FetchOutcome{
		RunID:        runID,
		Status:       domain.RunStatusSucceeded,
		ItemsFetched: len(result.Items),
		NewItems:     inserted,
	}
	s.fetchExtras(ctx, adapter, src, result, outcome)

	done := s.now()
	if err := s.runs.FinishFetchRun(ctx, runID, domain.RunStatusSucceeded, outcome.ItemsFetched, outcome.NewItems, "", done); err != nil {
		if errors.Is(err, repository.ErrRunNotRunning) {
			// the reaper failed the run while it was fetching; stored items are kept
			logger.FromContext(ctx).WithField("new_items", inserted).Warn("Fetch run was reaped before it finished")
			outcome.Status = domain.RunStatusFailed
		}
		return outcome, fmt.Errorf("failed to finish fetch run: %w", err)
	}
	if err := s.sources.RecordSuccess(ctx, src.ID, done); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record source success")
	}
	s.metrics.FetchRun(string(src.Type), string(domain.RunStatusSucceeded), started, inserted)

	logger.With(logger.Fields{
		"items_fetched": outcome.ItemsFetched,
		"new_items":     outcome.NewItems,
		"odds":          outcome.Odds,
		"results":       outcome.Results,
	}).WithDuration(started).WithStatus(string(domain.RunStatusSucceeded)).Info(ctx, "Source fetch completed")
	logger.Audit(ctx, "source_fetch_run.succeeded", logger.Fields{"run_id": runID, "source_id": src.ID})
	return outcome, nil
}

// fetchExtras stores odds and results. Adapters that decode them alongside the items hand them
// over in result; the others are asked through OddsFetcher and ResultsFetcher. Failures are
// logged only.
func (s *FetchService) fetchExtras(ctx context.Context, adapter source.Adapter, src *domain.Source, result *source.FetchResult, outcome *FetchOutcome) {
	if err := s.storeOdds(ctx, adapter, src, result.Odds, outcome); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to fetch odds")
	}
	if err := s.storeResults(ctx, adapter, src, result.Results, outcome); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to fetch results")
	}
}

func (s *FetchService) storeOdds(ctx context.Context, adapter source.Adapter, src *domain.Source, snaps []domain.OddsSnapshot, outcome *FetchOutcome) error {
	if of, ok := adapter.(source.OddsFetcher); ok && snaps == nil {
		var err error
		if snaps, err = of.FetchOdds(ctx, src); err != nil {
			return err
		}
	}
	if len(snaps) == 0 {
		return nil
	}
	for i := range snaps {
		snaps[i].OrgID, snaps[i].SourceID = src.OrgID, src.ID
	}
	n, err := s.news.InsertOdds(ctx, snaps)
	outcome.Odds = n
	return err
}

func (s *FetchService) storeResults(ctx context.Context, adapter source.Adapter, src *domain.Source, results []domain.GameResult, outcome *FetchOutcome) error {
	if rf, ok := adapter.(source.ResultsFetcher); ok && results == nil {
		var err error
		if results, err = rf.FetchResults(ctx, src); err != nil {
			return err
		}
	}
	if len(results) == 0 {
		return nil
	}
	for i := range results {
		results[i].OrgID, results[i].SourceID = src.OrgID, src.ID
	}
	n, err := s.news.UpsertResults(ctx, results)
	outcome.Results = n
	return err
}

func (s *FetchService) fail(ctx context.Context, src *domain.Source, runID string, started time.Time, cause error) (*FetchOutcome, error) {
	at := s.now()
	message := cause.Error()
	rateLimited := false
	var fe *source.FetchError
	if errors.As(cause, &fe) {
		rateLimited = fe.RateLimited()
	}

	if err := s.runs.FailFetchRun(ctx, runID, message, at); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark fetch run failed")
	}
	if err := s.sources.RecordFailure(ctx, src.ID, at, message, rateLimited); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record source failure")
	}
	s.metrics.FetchRun(string(src.Type), string(domain.RunStatusFailed), started, 0)

	logger.FromContext(ctx).WithError(cause).WithField("rate_limited", rateLimited).Warn("Source fetch failed")
	return &FetchOutcome{RunID: runID, Status: domain.RunStatusFailed}, cause
}

func (s *FetchService) toNewsItems(src *domain.Source, raw []source.RawNewsItem) []domain.NewsItem {
	items := make([]domain.NewsItem, 0, len(raw))
	now := s.now()
	for _, r := range raw {
		kind := r.Type
		if kind == "" {
			kind = source.Classify(r.Headline, r.Content)
		}
		published := r.PublishedAt
		if published.IsZero() {
			published = now
		}
		items = append(items, domain.NewsItem{
			OrgID:       src.OrgID,
			SourceID:    src.ID,
			ExternalID:  r.ExternalID,
			Type:        kind,
			Sport:       src.Sport,
			Headline:    r.Headline,
			Content:     r.Content,
			URL:         r.URL,
			Author:      r.Author,
			ImageURL:    r.ImageURL,
			PublishedAt: published.UTC(),
		})
	}
	return items
}
