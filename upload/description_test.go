package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vodarchiver/archiver/metadata"
)

func TestDescriptionTemplateIncludesURLChannelAndDate(t *testing.T) {
	m := metadata.VodMetadata{
		VodID:         "v1",
		Title:         "Epic Stream",
		Url:           "https://example.com/v1",
		Channel:       "some_channel",
		CapturedAtUtc: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}

	description, err := DescriptionTemplate(m)
	require.NoError(t, err)
	require.Contains(t, description, "https://example.com/v1")
	require.Contains(t, description, "some_channel")
	require.Contains(t, description, "2026-03-04")
}

func TestCategoryIDDefaultsToGaming(t *testing.T) {
	require.Equal(t, "20", CategoryID("gaming"))
	require.Equal(t, "20", CategoryID("unknown"))
	require.Equal(t, "20", CategoryID(""))
}

func TestCategoryIDResolvesKnownCategories(t *testing.T) {
	require.Equal(t, "10", CategoryID("Music"))
	require.Equal(t, "27", CategoryID("education"))
}

func TestTagsIncludesChannelIdentifier(t *testing.T) {
	require.Equal(t, []string{"some_channel"}, Tags("some_channel"))
	require.Nil(t, Tags(""))
}
