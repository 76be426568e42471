package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/sportsclips/internal/domain"
)

// NewsRepository handles news items, odds snapshots and game results.
type NewsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new NewsRepository.
func NewNewsRepository(db *gorm.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// InsertNew inserts items one by one, skipping any whose (org, source, external id) already exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - items: items to insert; IDs are assigned when empty.
// Returns:
//   - int: number of rows actually inserted.
//   - error: non-nil on a database failure other than a duplicate.
func (r *NewsRepository) InsertNew(ctx context.Context, items []domain.NewsItem) (int, error) {
	inserted := 0
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "source_id"}, {Name: "external_id"}},
				DoNothing: true,
			}).
			Create(&items[i])
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// InsertOdds stores odds snapshots, skipping duplicates.
func (r *NewsRepository) InsertOdds(ctx context.Context, snaps []domain.OddsSnapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	for i := range snaps {
		if snaps[i].ID == "" {
			snaps[i].ID = uuid.New().String()
		}
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "source_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&snaps)
	return int(res.RowsAffected), res.Error
}

// UpsertResults stores game results, updating score and status of known games.
func (r *NewsRepository) UpsertResults(ctx context.Context, results []domain.GameResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.New().String()
		}
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "source_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"home_score", "away_score", "status"}),
		}).
		Create(&results)
	return int(res.RowsAffected), res.Error
}

// GetByID retrieves a news item by id.
func (r *NewsRepository) GetByID(ctx context.Context, id string) (*domain.NewsItem, error) {
	var item domain.NewsItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// ListBySource returns recent items of a source.
func (r *NewsRepository) ListBySource(ctx context.Context, sourceID string, limit int) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("published_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ListUnpaired returns unpaired items whose importance score is at least minImportance.
func (r *NewsRepository) ListUnpaired(ctx context.Context, minImportance float64, limit int) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	err := r.db.WithContext(ctx).
		Where("is_paired = ? AND importance_score IS NOT NULL AND importance_score >= ?", false, minImportance).
		Order("importance_score DESC, published_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// SetImportance stores an externally computed importance score.
func (r *NewsRepository) SetImportance(ctx context.Context, id string, score float64) error {
	return r.db.WithContext(ctx).Model(&domain.NewsItem{}).
		Where("id = ?", id).
		Update("importance_score", score).Error
}

// SetEntities stores extracted teams, players and topics.
func (r *NewsRepository) SetEntities(ctx context.Context, id string, teams, players, topics []string) error {
	return r.db.WithContext(ctx).Model(&domain.NewsItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"teams":   domain.StringArray(teams),
			"players": domain.StringArray(players),
			"topics":  domain.StringArray(topics),
		}).Error
}

// ListResults returns recent game results for a sport.
func (r *NewsRepository) ListResults(ctx context.Context, sport string, since time.Time) ([]domain.GameResult, error) {
	var results []domain.GameResult
	err := r.db.WithContext(ctx).
		Where("sport = ? AND played_at >= ?", sport, since).
		Order("played_at DESC").
		Find(&results).Error
	return results, err
}
