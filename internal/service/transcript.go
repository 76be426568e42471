package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/storage"
)

// ErrNoTranscript is returned when a video has no caption track.
var ErrNoTranscript = errors.New("no transcript available")

// TranscriptFetcher loads the caption track of a video.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, youtubeID string) ([]domain.TranscriptSegment, error)
}

// TranscriptClient calls the transcript API: GET {base}/transcripts/{id}?lang=en.
type TranscriptClient struct {
	client  *resty.Client
	baseURL string
}

// NewTranscriptClient creates a TranscriptClient.
func NewTranscriptClient(cfg *config.TranscriptConfig) *TranscriptClient {
	client := resty.New()
	client.SetTimeout(externalCallTimeout)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &TranscriptClient{client: client, baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

type transcriptResponse struct {
	Segments []domain.TranscriptSegment `json:"segments"`
}

// Fetch implements TranscriptFetcher.
func (c *TranscriptClient) Fetch(ctx context.Context, youtubeID string) ([]domain.TranscriptSegment, error) {
	if c.baseURL == "" {
		return nil, ErrNoTranscript
	}
	var out transcriptResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", youtubeID).
		SetQueryParam("lang", "en").
		SetResult(&out).
		Get(c.baseURL + "/transcripts/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to call transcript API: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if resp.IsError() {
		return nil, fmt.Errorf("transcript API error: status %d", resp.StatusCode())
	}
	if len(out.Segments) == 0 {
		return nil, ErrNoTranscript
	}
	return out.Segments, nil
}

// ArchivedTranscripts serves transcripts from the object store archive first and
// archives whatever the upstream fetcher returns.
type ArchivedTranscripts struct {
	archive  *storage.TranscriptArchive
	upstream TranscriptFetcher
}

// NewArchivedTranscripts wraps upstream with an archive. A nil archive disables caching.
func NewArchivedTranscripts(archive *storage.TranscriptArchive, upstream TranscriptFetcher) *ArchivedTranscripts {
	return &ArchivedTranscripts{archive: archive, upstream: upstream}
}

// Fetch implements TranscriptFetcher.
func (a *ArchivedTranscripts) Fetch(ctx context.Context, youtubeID string) ([]domain.TranscriptSegment, error) {
	if a.archive != nil {
		segs, found, err := a.archive.Get(ctx, youtubeID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("video_id", youtubeID).Warn("Transcript archive read failed")
		} else if found {
			return segs, nil
		}
	}

	segs, err := a.upstream.Fetch(ctx, youtubeID)
	if err != nil {
		return nil, err
	}
	if a.archive != nil {
		if err := a.archive.Put(ctx, youtubeID, segs); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("video_id", youtubeID).Warn("Transcript archive write failed")
		}
	}
	return segs, nil
}
