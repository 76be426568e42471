package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/repository"
)

type pairingFixture struct {
	news       *repository.NewsRepository
	candidates *repository.CandidateRepository
	matches    *repository.ClipMatchRepository
	svc        *PairingService
}

func newPairingFixture(t *testing.T) *pairingFixture {
	db := newTestDB(t)
	f := &pairingFixture{
		news:       repository.NewNewsRepository(db),
		candidates: repository.NewCandidateRepository(db),
		matches:    repository.NewClipMatchRepository(db),
	}
	f.svc = NewPairingService(f.news, f.candidates, f.matches, nil, nil, PairingConfig{})
	return f
}

func (f *pairingFixture) candidate(t *testing.T, youtubeID, sport, title string, published time.Time, relevance float64) string {
	ctx := context.Background()
	v := &domain.Video{YouTubeID: youtubeID, Title: title, PublishedAt: published}
	require.NoError(t, f.candidates.UpsertVideo(ctx, v))
	cs := []domain.Candidate{{
		OrgID:          "org",
		VideoID:        v.ID,
		QueryRunID:     "run-1",
		Sport:          sport,
		RelevanceScore: relevance,
	}}
	require.NoError(t, f.candidates.CreateCandidates(ctx, cs))
	return cs[0].ID
}

func (f *pairingFixture) newsItem(t *testing.T, externalID, headline string, teams []string, importance float64) string {
	item := domain.NewsItem{
		OrgID:           "org",
		SourceID:        "src-1",
		ExternalID:      externalID,
		Sport:           "basketball",
		Headline:        headline,
		PublishedAt:     testNow,
		Teams:           domain.StringArray(teams),
		ImportanceScore: &importance,
	}
	items := []domain.NewsItem{item}
	n, err := f.news.InsertNew(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return items[0].ID
}

func TestPairingService_PairNewsItem(t *testing.T) {
	ctx := context.Background()
	f := newPairingFixture(t)
	celtics := f.candidate(t, "yt-celtics", "basketball", "Boston Celtics vs Miami Heat full highlights", testNow.Add(-2*time.Hour), 0.5)
	f.candidate(t, "yt-nuggets", "basketball", "Denver Nuggets practice session", testNow.Add(-24*time.Hour), 0.9)
	f.candidate(t, "yt-bruins", "hockey", "Boston Celtics fans at the Bruins game", testNow.Add(-time.Hour), 0.9)
	f.candidate(t, "yt-old", "basketball", "Boston Celtics vs Miami Heat classic", testNow.AddDate(0, 0, -30), 0.9)

	newsID := f.newsItem(t, "n1", "Celtics edge Heat in overtime", []string{"Boston Celtics", "Miami Heat"}, 0.9)

	matches, err := f.svc.PairNewsItem(ctx, newsID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, celtics, matches[0].CandidateID)
	assert.InDelta(t, 0.65, matches[0].MatchScore, 1e-9)
	assert.Contains(t, matches[0].MatchReasons, "same day")

	item, err := f.news.GetByID(ctx, newsID)
	require.NoError(t, err)
	assert.True(t, item.IsPaired)
	assert.NotNil(t, item.PairedAt)

	stored, err := f.matches.ListByNews(ctx, newsID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ClipMatchPending, stored[0].Status)
}

func TestPairingService_RepairReplacesMatches(t *testing.T) {
	ctx := context.Background()
	f := newPairingFixture(t)
	celtics := f.candidate(t, "yt-celtics", "basketball", "Boston Celtics vs Miami Heat full highlights", testNow.Add(-2*time.Hour), 0.5)
	newsID := f.newsItem(t, "n1", "Celtics edge Heat in overtime", []string{"Boston Celtics", "Miami Heat"}, 0.9)

	_, err := f.svc.PairNewsItem(ctx, newsID)
	require.NoError(t, err)

	_, err = f.candidates.UpdateStatus(ctx, celtics, domain.CandidateStatusDismissed)
	require.NoError(t, err)

	matches, err := f.svc.PairNewsItem(ctx, newsID)
	require.NoError(t, err)
	assert.Empty(t, matches, "dismissed candidates leave the pool")

	stored, err := f.matches.ListByNews(ctx, newsID)
	require.NoError(t, err)
	assert.Empty(t, stored)
	item, err := f.news.GetByID(ctx, newsID)
	require.NoError(t, err)
	assert.False(t, item.IsPaired)
}

func TestPairingService_PairPending(t *testing.T) {
	ctx := context.Background()
	f := newPairingFixture(t)
	f.candidate(t, "yt-celtics", "basketball", "Boston Celtics vs Miami Heat full highlights", testNow.Add(-2*time.Hour), 0.5)
	f.candidate(t, "yt-nuggets", "basketball", "Denver Nuggets practice session", testNow.Add(-24*time.Hour), 0.9)

	f.newsItem(t, "n1", "Celtics edge Heat in overtime", []string{"Boston Celtics", "Miami Heat"}, 0.9)
	f.newsItem(t, "n2", "Suns sign veteran forward", []string{"Phoenix Suns"}, 0.8)
	f.newsItem(t, "n3", "Celtics announce ticket prices", []string{"Boston Celtics"}, 0.2)

	stats, err := f.svc.PairPending(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, PairingStats{Considered: 2, Paired: 1, Unmatched: 1}, stats)

	// the unmatched item stays pending and is considered again
	stats, err = f.svc.PairPending(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, PairingStats{Considered: 1, Unmatched: 1}, stats)
}

func TestPairingService_UnknownNewsItem(t *testing.T) {
	f := newPairingFixture(t)
	_, err := f.svc.PairNewsItem(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
