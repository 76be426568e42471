package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/domain"
)

// ClipMatchRepository handles news-to-clip matches.
type ClipMatchRepository struct {
	db *gorm.DB
}

// NewClipMatchRepository creates a new ClipMatchRepository.
func NewClipMatchRepository(db *gorm.DB) *ClipMatchRepository {
	return &ClipMatchRepository{db: db}
}

// ReplaceForNews swaps a news item's match set and sets is_paired in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - newsID: news item whose matches are replaced.
//   - matches: new match set; may be empty.
// Returns:
//   - error: non-nil if any statement fails; the previous set is then kept.
func (r *ClipMatchRepository) ReplaceForNews(ctx context.Context, newsID string, matches []domain.ClipMatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("news_item_id = ?", newsID).Delete(&domain.ClipMatch{}).Error; err != nil {
			return err
		}
		if len(matches) > 0 {
			for i := range matches {
				if matches[i].ID == "" {
					matches[i].ID = uuid.New().String()
				}
				matches[i].NewsItemID = newsID
				if matches[i].Status == "" {
					matches[i].Status = domain.ClipMatchPending
				}
			}
			if err := tx.Create(&matches).Error; err != nil {
				return err
			}
		}

		paired := len(matches) > 0
		updates := map[string]interface{}{"is_paired": paired, "paired_at": nil}
		if paired {
			updates["paired_at"] = time.Now().UTC()
		}
		res := tx.Model(&domain.NewsItem{}).Where("id = ?", newsID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListByNews returns a news item's matches, best first.
func (r *ClipMatchRepository) ListByNews(ctx context.Context, newsID string) ([]domain.ClipMatch, error) {
	var matches []domain.ClipMatch
	err := r.db.WithContext(ctx).
		Where("news_item_id = ?", newsID).
		Order("match_score DESC").
		Find(&matches).Error
	return matches, err
}
