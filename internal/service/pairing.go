package service

import (
	"context"
	"fmt"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/matching"
	"github.com/timmy/sportsclips/internal/metrics"
	"github.com/timmy/sportsclips/internal/repository"
)

const (
	defaultMinImportance = 0.6
	defaultPendingLimit  = 50
)

// PairingConfig tunes pairing.
type PairingConfig struct {
	PoolSize      int
	MinImportance float64
	PendingLimit  int
}

// PairingService links important news items to discovered clips.
type PairingService struct {
	news       *repository.NewsRepository
	candidates *repository.CandidateRepository
	matches    *repository.ClipMatchRepository
	matcher    *matching.Matcher
	metrics    *metrics.Metrics
	cfg        PairingConfig
}

// NewPairingService creates a PairingService. m may be nil.
func NewPairingService(
	news *repository.NewsRepository,
	candidates *repository.CandidateRepository,
	matches *repository.ClipMatchRepository,
	matcher *matching.Matcher,
	m *metrics.Metrics,
	cfg PairingConfig,
) *PairingService {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = matching.PoolSize
	}
	if cfg.MinImportance <= 0 {
		cfg.MinImportance = defaultMinImportance
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = defaultPendingLimit
	}
	if matcher == nil {
		matcher = matching.NewMatcher()
	}
	return &PairingService{
		news:       news,
		candidates: candidates,
		matches:    matches,
		matcher:    matcher,
		metrics:    m,
		cfg:        cfg,
	}
}

// PairNewsItem scores the candidate pool for one news item and replaces its match set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - newsID: news item to pair.
// Returns:
//   - []domain.ClipMatch: the stored matches, best first; empty when nothing qualified.
//   - error: repository.ErrNotFound for an unknown item, or a store error.
func (s *PairingService) PairNewsItem(ctx context.Context, newsID string) ([]domain.ClipMatch, error) {
	item, err := s.news.GetByID(ctx, newsID)
	if err != nil {
		return nil, err
	}

	pool, err := s.candidates.PoolForNews(ctx, item.OrgID, item.Sport,
		item.PublishedAt.Add(-matching.PoolWindow), item.PublishedAt, s.cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	clips := make([]matching.Clip, len(pool))
	for i := range pool {
		clips[i] = matching.ClipFromCandidate(&pool[i])
	}
	ranked := s.matcher.Rank(item, clips)

	rows := make([]domain.ClipMatch, len(ranked))
	for i, m := range ranked {
		rows[i] = domain.ClipMatch{
			OrgID:        item.OrgID,
			CandidateID:  m.CandidateID,
			MatchScore:   m.Score,
			MatchReasons: domain.StringArray(m.Reasons),
		}
	}
	if err := s.matches.ReplaceForNews(ctx, item.ID, rows); err != nil {
		return nil, fmt.Errorf("failed to store matches: %w", err)
	}
	s.metrics.Matches(len(rows))

	logger.FromContext(ctx).WithFields(logger.Fields{
		"news_id":         item.ID,
		"pool":            len(pool),
		logger.FieldCount: len(rows),
	}).Info("Paired news item")
	logger.Audit(ctx, "news_item.paired", logger.Fields{"news_id": item.ID, "matches": len(rows)})
	return rows, nil
}

// PairingStats summarizes a PairPending pass.
type PairingStats struct {
	Considered int `json:"considered"`
	Paired     int `json:"paired"`
	Unmatched  int `json:"unmatched"`
	Failed     int `json:"failed"`
}

// PairPending pairs unpaired news items whose importance reaches minImportance.
// Zero arguments take the configured defaults. One item's failure does not stop the pass.
func (s *PairingService) PairPending(ctx context.Context, minImportance float64, limit int) (PairingStats, error) {
	if minImportance <= 0 {
		minImportance = s.cfg.MinImportance
	}
	if limit <= 0 {
		limit = s.cfg.PendingLimit
	}

	var stats PairingStats
	items, err := s.news.ListUnpaired(ctx, minImportance, limit)
	if err != nil {
		return stats, fmt.Errorf("failed to list unpaired news: %w", err)
	}

	for _, item := range items {
		stats.Considered++
		matches, err := s.PairNewsItem(ctx, item.ID)
		switch {
		case err != nil:
			stats.Failed++
			logger.FromContext(ctx).WithError(err).WithField("news_id", item.ID).Warn("Failed to pair news item")
		case len(matches) > 0:
			stats.Paired++
		default:
			stats.Unmatched++
		}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"considered": stats.Considered,
		"paired":     stats.Paired,
		"unmatched":  stats.Unmatched,
		"failed":     stats.Failed,
	}).Info("Pairing pass finished")
	return stats, nil
}
