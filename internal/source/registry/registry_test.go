package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsclips/internal/domain"
)

func TestRegistryCoversEveryType(t *testing.T) {
	r := New(Options{})
	for _, st := range domain.SourceTypes {
		a, err := r.Lookup(st)
		require.NoError(t, err, st)
		assert.Equal(t, st, a.Type())
	}
	assert.Len(t, r.Metadata(), len(domain.SourceTypes))
}

func TestRegistryMetadata(t *testing.T) {
	r := New(Options{})
	byType := map[domain.SourceType]Metadata{}
	for _, m := range r.Metadata() {
		byType[m.Type] = m
	}
	assert.True(t, byType[domain.SourceTypeDraftKingsAPI].Capabilities.Odds)
	assert.True(t, byType[domain.SourceTypeESPNAPI].Capabilities.Results)
	assert.False(t, byType[domain.SourceTypeRSSFeed].Capabilities.Odds)
	assert.Equal(t, 15, byType[domain.SourceTypeSportsGridAPI].RecommendedMinIntervalMinutes)
	assert.True(t, byType[domain.SourceTypeRSSFeed].Fields[0].Required)
}

func TestValidateUnknownType(t *testing.T) {
	_, err := New(Options{}).Validate("FAX_MACHINE", domain.JSONMap{})
	assert.Error(t, err)
}

func TestValidateSourceIntervalWarning(t *testing.T) {
	r := New(Options{})
	src := &domain.Source{
		Type:   domain.SourceTypeDraftKingsAPI,
		Config: domain.JSONMap{"sport": "football"},
		Schedule: domain.Schedule{
			IsScheduled:            true,
			ScheduleType:           domain.ScheduleHourly,
			RefreshIntervalMinutes: 5,
		},
	}
	res, err := r.ValidateSource(src)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "recommended minimum of 15 minutes")

	src.RefreshIntervalMinutes = 30
	res, err = r.ValidateSource(src)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}
