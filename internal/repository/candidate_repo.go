package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/sportsclips/internal/domain"
)

// CandidateRepository handles videos, candidates and their moments.
type CandidateRepository struct {
	db *gorm.DB
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// UpsertVideo creates or refreshes a video keyed by its YouTube id. The stored id is written back.
func (r *CandidateRepository) UpsertVideo(ctx context.Context, v *domain.Video) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "youtube_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "channel_id", "channel_title", "published_at",
			"duration_seconds", "view_count", "like_count", "comment_count",
			"thumbnail_url", "updated_at",
		}),
	}).Create(v).Error
	if err != nil {
		return err
	}
	var stored domain.Video
	if err := r.db.WithContext(ctx).Select("id").First(&stored, "youtube_id = ?", v.YouTubeID).Error; err != nil {
		return notFound(err)
	}
	v.ID = stored.ID
	return nil
}

// MarkTranscript records that a transcript exists for a video.
func (r *CandidateRepository) MarkTranscript(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).Model(&domain.Video{}).
		Where("id = ?", videoID).
		Update("has_transcript", true).Error
}

// CreateCandidates persists candidates and their moments in one transaction.
func (r *CandidateRepository) CreateCandidates(ctx context.Context, candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		if candidates[i].ID == "" {
			candidates[i].ID = uuid.New().String()
		}
		if candidates[i].Status == "" {
			candidates[i].Status = domain.CandidateStatusNew
		}
		for j := range candidates[i].Moments {
			if candidates[i].Moments[j].ID == "" {
				candidates[i].Moments[j].ID = uuid.New().String()
			}
			candidates[i].Moments[j].CandidateID = candidates[i].ID
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Video").Create(&candidates).Error
	})
}

// GetByID retrieves a candidate with its video and moments.
func (r *CandidateRepository) GetByID(ctx context.Context, id string) (*domain.Candidate, error) {
	var c domain.Candidate
	err := r.db.WithContext(ctx).
		Preload("Video").
		Preload("Moments", func(db *gorm.DB) *gorm.DB { return db.Order("start_seconds ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByRun returns a run's candidates ordered by relevance.
func (r *CandidateRepository) ListByRun(ctx context.Context, runID string) ([]domain.Candidate, error) {
	var cs []domain.Candidate
	err := r.db.WithContext(ctx).
		Preload("Video").
		Preload("Moments", func(db *gorm.DB) *gorm.DB { return db.Order("start_seconds ASC") }).
		Where("query_run_id = ?", runID).
		Order("relevance_score DESC").
		Find(&cs).Error
	return cs, err
}

// UpdateStatus applies a validated lifecycle transition.
func (r *CandidateRepository) UpdateStatus(ctx context.Context, id string, next domain.CandidateStatus) (*domain.Candidate, error) {
	var out *domain.Candidate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Candidate
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if err := c.Status.ValidateTransition(next); err != nil {
			return err
		}
		if err := tx.Model(&c).Update("status", next).Error; err != nil {
			return err
		}
		c.Status = next
		out = &c
		return nil
	})
	return out, err
}

// PoolForNews returns same-sport candidates whose video was published in [from, to], best
// stored relevance first, with videos preloaded.
func (r *CandidateRepository) PoolForNews(ctx context.Context, orgID, sport string, from, to time.Time, limit int) ([]domain.Candidate, error) {
	var cs []domain.Candidate
	err := r.db.WithContext(ctx).
		Preload("Video").
		Joins("JOIN videos ON videos.id = candidates.video_id").
		Where("candidates.org_id = ? AND candidates.sport = ?", orgID, sport).
		Where("candidates.status <> ?", domain.CandidateStatusDismissed).
		Where("videos.published_at >= ? AND videos.published_at <= ?", from, to).
		Order("candidates.relevance_score DESC").
		Limit(limit).
		Find(&cs).Error
	return cs, err
}
