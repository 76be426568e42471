package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
)

func TestTranscriptArchive_RoundTrip(t *testing.T) {
	ctx := context.Background()
	archive := NewTranscriptArchive(NewMemoryStorage())

	_, found, err := archive.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	segs := []domain.TranscriptSegment{
		{Start: 0, Duration: 4.5, Text: "welcome back"},
		{Start: 4.5, Duration: 3, Text: "what a dunk"},
	}
	require.NoError(t, archive.Put(ctx, "abc", segs))

	got, found, err := archive.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, segs, got)
}

func TestTranscriptArchive_CorruptObjectIsDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Put(ctx, transcriptKey("bad"), []byte("{not json"), "application/json"))

	_, found, err := NewTranscriptArchive(store).Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, store.Len())
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	require.NoError(t, m.Prepare(ctx))

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	require.NoError(t, m.Delete(ctx, "missing"))

	data := []byte("payload")
	require.NoError(t, m.Put(ctx, "k", data, "text/plain"))
	data[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got), "stored copy is isolated from the caller's slice")
}

func TestNewStorage(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
		memory  bool
	}{
		{name: "empty endpoint falls back to memory", cfg: config.StorageConfig{}, memory: true},
		{name: "explicit memory", cfg: config.StorageConfig{Type: "memory", Endpoint: "http://minio:9000"}, memory: true},
		{name: "s3 without bucket", cfg: config.StorageConfig{Type: "s3"}, wantErr: true},
		{name: "unknown type", cfg: config.StorageConfig{Type: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStorage(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, isMemory := store.(*MemoryStorage)
			assert.Equal(t, tt.memory, isMemory)
		})
	}
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acct.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.us-east-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("minio:9000"))
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/some/path"))
}
