package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
)

// TranscriptArchive caches fetched transcripts as JSON objects keyed by video id.
type TranscriptArchive struct {
	store ObjectStorage
}

// NewTranscriptArchive wraps an object store.
func NewTranscriptArchive(store ObjectStorage) *TranscriptArchive {
	return &TranscriptArchive{store: store}
}

func transcriptKey(videoID string) string {
	return "transcripts/" + videoID + ".json"
}

// Get returns the archived transcript. found is false when nothing usable is stored;
// an undecodable object is deleted so the next fetch replaces it.
func (a *TranscriptArchive) Get(ctx context.Context, videoID string) (segments []domain.TranscriptSegment, found bool, err error) {
	key := transcriptKey(videoID)
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal(data, &segments); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Dropping corrupt archived transcript")
		if derr := a.store.Delete(ctx, key); derr != nil {
			return nil, false, fmt.Errorf("failed to delete corrupt transcript %s: %w", videoID, derr)
		}
		return nil, false, nil
	}
	return segments, true, nil
}

// Put stores a transcript, replacing any previous copy.
func (a *TranscriptArchive) Put(ctx context.Context, videoID string, segments []domain.TranscriptSegment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to encode transcript %s: %w", videoID, err)
	}
	return a.store.Put(ctx, transcriptKey(videoID), data, "application/json")
}
