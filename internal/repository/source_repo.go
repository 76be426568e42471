package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/domain"
)

// MaxConsecutiveErrors moves a source to ERROR.
const MaxConsecutiveErrors = 5

// SourceRepository handles source records.
type SourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a source, assigning an id when empty.
func (r *SourceRepository) Create(ctx context.Context, src *domain.Source) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.Status == "" {
		src.Status = domain.SourceStatusActive
	}
	return r.db.WithContext(ctx).Create(src).Error
}

// GetByID retrieves a source by id.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var src domain.Source
	if err := r.db.WithContext(ctx).First(&src, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &src, nil
}

// List returns an org's sources ordered by name.
func (r *SourceRepository) List(ctx context.Context, orgID string) ([]domain.Source, error) {
	var sources []domain.Source
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("name ASC").
		Find(&sources).Error
	return sources, err
}

// ListDue returns scheduled, active, unpaused sources whose next fetch is at or before now.
func (r *SourceRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Source, error) {
	var sources []domain.Source
	err := r.db.WithContext(ctx).
		Where("is_scheduled = ? AND is_active = ? AND status <> ?", true, true, domain.SourceStatusPaused).
		Where("next_fetch_at IS NOT NULL AND next_fetch_at <= ?", now).
		Order("next_fetch_at ASC").
		Find(&sources).Error
	return sources, err
}

// SetNextFetch updates the next fetch timestamp; nil clears it.
func (r *SourceRepository) SetNextFetch(ctx context.Context, id string, next *time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Source{}).
		Where("id = ?", id).
		Update("next_fetch_at", next).Error
}

// SetManualTrigger records a manual trigger time.
func (r *SourceRepository) SetManualTrigger(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Source{}).
		Where("id = ?", id).
		Update("last_manual_trigger_at", at).Error
}

// RecordSuccess resets the error streak and restores ACTIVE.
func (r *SourceRepository) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_fetch_at":      at,
			"fetch_count":        gorm.Expr("fetch_count + 1"),
			"consecutive_errors": 0,
			"status":             gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END", domain.SourceStatusPaused, domain.SourceStatusActive),
		}).Error
}

// RecordFailure bumps error counters. A 429 marks the source RATE_LIMITED; the fifth consecutive
// error marks it ERROR.
func (r *SourceRepository) RecordFailure(ctx context.Context, id string, at time.Time, message string, rateLimited bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src domain.Source
		if err := tx.First(&src, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		consecutive := src.ConsecutiveErrors + 1
		status := src.Status
		switch {
		case status == domain.SourceStatusPaused:
		case rateLimited:
			status = domain.SourceStatusRateLimited
		case consecutive >= MaxConsecutiveErrors:
			status = domain.SourceStatusError
		}
		return tx.Model(&domain.Source{}).Where("id = ?", id).Updates(map[string]interface{}{
			"last_fetch_at":      at,
			"fetch_count":        src.FetchCount + 1,
			"error_count":        src.ErrorCount + 1,
			"consecutive_errors": consecutive,
			"last_error_message": message,
			"status":             status,
		}).Error
	})
}

// UpdateStatus sets a source's status directly (pause/resume).
func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.Source{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
