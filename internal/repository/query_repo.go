package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/domain"
)

// QueryDefinitionRepository handles saved query definitions.
type QueryDefinitionRepository struct {
	db *gorm.DB
}

// NewQueryDefinitionRepository creates a new QueryDefinitionRepository.
func NewQueryDefinitionRepository(db *gorm.DB) *QueryDefinitionRepository {
	return &QueryDefinitionRepository{db: db}
}

// Create inserts a definition, assigning an id when empty.
func (r *QueryDefinitionRepository) Create(ctx context.Context, def *domain.QueryDefinition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(def).Error
}

// GetByID retrieves a definition by id.
func (r *QueryDefinitionRepository) GetByID(ctx context.Context, id string) (*domain.QueryDefinition, error) {
	var def domain.QueryDefinition
	if err := r.db.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &def, nil
}

// List returns an org's definitions.
func (r *QueryDefinitionRepository) List(ctx context.Context, orgID string) ([]domain.QueryDefinition, error) {
	var defs []domain.QueryDefinition
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("name ASC").Find(&defs).Error
	return defs, err
}

// ListDue returns scheduled, active definitions whose next run is at or before now.
func (r *QueryDefinitionRepository) ListDue(ctx context.Context, now time.Time) ([]domain.QueryDefinition, error) {
	var defs []domain.QueryDefinition
	err := r.db.WithContext(ctx).
		Where("is_scheduled = ? AND is_active = ?", true, true).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now).
		Order("next_run_at ASC").
		Find(&defs).Error
	return defs, err
}

// SetNextRun updates the next run timestamp; nil clears it.
func (r *QueryDefinitionRepository) SetNextRun(ctx context.Context, id string, next *time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.QueryDefinition{}).
		Where("id = ?", id).
		Update("next_run_at", next).Error
}

// SetManualTrigger records a manual trigger time.
func (r *QueryDefinitionRepository) SetManualTrigger(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.QueryDefinition{}).
		Where("id = ?", id).
		Update("last_manual_trigger_at", at).Error
}

// MarkRan records the completion time of a run.
func (r *QueryDefinitionRepository) MarkRan(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.QueryDefinition{}).
		Where("id = ?", id).
		Update("last_run_at", at).Error
}
