package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/domain"
)

// RunRepository handles source fetch runs and query runs.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateFetchRun inserts a QUEUED fetch run unless the source already has one in flight.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: run to insert; ID, Status and QueuedAt are filled in.
// Returns:
//   - error: ErrRunInFlight when a QUEUED or RUNNING run exists.
func (r *RunRepository) CreateFetchRun(ctx context.Context, run *domain.SourceFetchRun) error {
	return r.createGuarded(ctx, &domain.SourceFetchRun{}, "source_id = ?", run.SourceID, func(tx *gorm.DB) error {
		if run.ID == "" {
			run.ID = uuid.New().String()
		}
		run.Status = domain.RunStatusQueued
		if run.QueuedAt.IsZero() {
			run.QueuedAt = time.Now().UTC()
		}
		return tx.Create(run).Error
	})
}

// CreateQueryRun inserts a QUEUED query run unless the definition already has one in flight.
func (r *RunRepository) CreateQueryRun(ctx context.Context, run *domain.QueryRun) error {
	return r.createGuarded(ctx, &domain.QueryRun{}, "query_definition_id = ?", run.QueryDefinitionID, func(tx *gorm.DB) error {
		if run.ID == "" {
			run.ID = uuid.New().String()
		}
		run.Status = domain.RunStatusQueued
		if run.QueuedAt.IsZero() {
			run.QueuedAt = time.Now().UTC()
		}
		return tx.Create(run).Error
	})
}

// createGuarded checks for an in-flight run and creates inside one transaction. The partial
// unique index catches concurrent creators the check misses.
func (r *RunRepository) createGuarded(ctx context.Context, model interface{}, where string, key string, create func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(model).
			Where(where, key).
			Where("status IN ?", domain.InFlightStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRunInFlight
		}
		return create(tx)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRunInFlight
	}
	return err
}

// HasFetchRunInFlight reports whether a source has a QUEUED or RUNNING run.
func (r *RunRepository) HasFetchRunInFlight(ctx context.Context, sourceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.SourceFetchRun{}).
		Where("source_id = ? AND status IN ?", sourceID, domain.InFlightStatuses).
		Count(&count).Error
	return count > 0, err
}

// HasQueryRunInFlight reports whether a definition has a QUEUED or RUNNING run.
func (r *RunRepository) HasQueryRunInFlight(ctx context.Context, definitionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.QueryRun{}).
		Where("query_definition_id = ? AND status IN ?", definitionID, domain.InFlightStatuses).
		Count(&count).Error
	return count > 0, err
}

// GetFetchRun retrieves a fetch run by id.
func (r *RunRepository) GetFetchRun(ctx context.Context, id string) (*domain.SourceFetchRun, error) {
	var run domain.SourceFetchRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// GetQueryRun retrieves a query run by id.
func (r *RunRepository) GetQueryRun(ctx context.Context, id string) (*domain.QueryRun, error) {
	var run domain.QueryRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// ListFetchRuns returns the most recent runs of a source.
func (r *RunRepository) ListFetchRuns(ctx context.Context, sourceID string, limit int) ([]domain.SourceFetchRun, error) {
	var runs []domain.SourceFetchRun
	q := r.db.WithContext(ctx).Order("queued_at DESC").Limit(limit)
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// ListQueryRuns returns the most recent query runs, optionally for one definition.
func (r *RunRepository) ListQueryRuns(ctx context.Context, definitionID string, limit int) ([]domain.QueryRun, error) {
	var runs []domain.QueryRun
	q := r.db.WithContext(ctx).Order("queued_at DESC").Limit(limit)
	if definitionID != "" {
		q = q.Where("query_definition_id = ?", definitionID)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// StartFetchRun moves a QUEUED fetch run to RUNNING. It returns false when the run was not QUEUED.
func (r *RunRepository) StartFetchRun(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.SourceFetchRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusQueued).
		Updates(map[string]interface{}{"status": domain.RunStatusRunning, "started_at": at})
	return res.RowsAffected == 1, res.Error
}

// FinishFetchRun stores the terminal state of a RUNNING fetch run.
// Returns:
//   - error: ErrRunNotRunning when the run left RUNNING meanwhile, e.g. it was reaped.
func (r *RunRepository) FinishFetchRun(ctx context.Context, id string, status domain.RunStatus, itemsFetched, newItems int, message string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.SourceFetchRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusRunning).
		Updates(map[string]interface{}{
			"status":        status,
			"items_fetched": itemsFetched,
			"new_items":     newItems,
			"error_message": message,
			"completed_at":  at,
		})
	return owned(res)
}

// FailFetchRun marks an in-flight fetch run FAILED with a message. Terminal runs are left alone.
func (r *RunRepository) FailFetchRun(ctx context.Context, id, message string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.SourceFetchRun{}).
		Where("id = ? AND status IN ?", id, domain.InFlightStatuses).
		Updates(map[string]interface{}{
			"status":        domain.RunStatusFailed,
			"error_message": message,
			"completed_at":  at,
		}).Error
}

// StartQueryRun moves a QUEUED query run to RUNNING. It returns false when the run was not QUEUED.
func (r *RunRepository) StartQueryRun(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.QueryRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusQueued).
		Updates(map[string]interface{}{"status": domain.RunStatusRunning, "started_at": at, "progress": 0})
	return res.RowsAffected == 1, res.Error
}

// QueryRunProgress is the counters and progress checkpoint written during a pipeline run.
type QueryRunProgress struct {
	Progress           int
	Message            string
	VideosFetched      int
	TranscriptsFetched int
	VideosProcessed    int
	CandidatesProduced int
	FailedItems        int
}

// UpdateQueryRunProgress writes a progress checkpoint. Progress never moves backwards.
func (r *RunRepository) UpdateQueryRunProgress(ctx context.Context, id string, p QueryRunProgress) error {
	return r.db.WithContext(ctx).Model(&domain.QueryRun{}).
		Where("id = ? AND progress <= ?", id, p.Progress).
		Updates(map[string]interface{}{
			"progress":            p.Progress,
			"progress_message":    p.Message,
			"videos_fetched":      p.VideosFetched,
			"transcripts_fetched": p.TranscriptsFetched,
			"videos_processed":    p.VideosProcessed,
			"candidates_produced": p.CandidatesProduced,
			"failed_items":        p.FailedItems,
		}).Error
}

// CompleteQueryRun marks a RUNNING query run SUCCEEDED at 100%.
// Returns:
//   - error: ErrRunNotRunning when the run left RUNNING meanwhile.
func (r *RunRepository) CompleteQueryRun(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.QueryRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusRunning).
		Updates(map[string]interface{}{
			"status":           domain.RunStatusSucceeded,
			"progress":         100,
			"progress_message": "Completed",
			"completed_at":     at,
		})
	return owned(res)
}

// FailQueryRun marks an in-flight query run FAILED with a message. Progress is left where it stopped.
func (r *RunRepository) FailQueryRun(ctx context.Context, id, message string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.QueryRun{}).
		Where("id = ? AND status IN ?", id, domain.InFlightStatuses).
		Updates(map[string]interface{}{
			"status":        domain.RunStatusFailed,
			"error_message": message,
			"completed_at":  at,
		}).Error
}

func owned(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotRunning
	}
	return nil
}

// Messages written by ReapStaleRuns.
const (
	ReapedRunningMessage = "run timed out"
	ReapedQueuedMessage  = "run was never picked up by a worker"
)

// ReapStaleRuns fails runs stuck in RUNNING since before cutoff, and runs still QUEUED since
// before cutoff whose queue message was lost (in-process queue restarted, Redis list dropped).
// Returns:
//   - int64: number of fetch and query runs reaped.
func (r *RunRepository) ReapStaleRuns(ctx context.Context, cutoff, now time.Time) (int64, error) {
	var total int64
	for _, model := range []interface{}{&domain.SourceFetchRun{}, &domain.QueryRun{}} {
		for _, stale := range []struct {
			status  domain.RunStatus
			column  string
			message string
		}{
			{domain.RunStatusRunning, "started_at", ReapedRunningMessage},
			{domain.RunStatusQueued, "queued_at", ReapedQueuedMessage},
		} {
			res := r.db.WithContext(ctx).Model(model).
				Where("status = ? AND "+stale.column+" < ?", stale.status, cutoff).
				Updates(map[string]interface{}{
					"status":        domain.RunStatusFailed,
					"error_message": stale.message,
					"completed_at":  now,
				})
			if res.Error != nil {
				return total, res.Error
			}
			total += res.RowsAffected
		}
	}
	return total, nil
}

// ListQueuedFetchRuns returns QUEUED fetch runs, oldest first.
func (r *RunRepository) ListQueuedFetchRuns(ctx context.Context, limit int) ([]domain.SourceFetchRun, error) {
	var runs []domain.SourceFetchRun
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.RunStatusQueued).
		Order("queued_at ASC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// ListQueuedQueryRuns returns QUEUED query runs, oldest first.
func (r *RunRepository) ListQueuedQueryRuns(ctx context.Context, limit int) ([]domain.QueryRun, error) {
	var runs []domain.QueryRun
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.RunStatusQueued).
		Order("queued_at ASC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
