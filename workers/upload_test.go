package workers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/vodarchiver/archiver/metadata"
	"github.com/vodarchiver/archiver/pipeline"
)

type fakeMetadataStore struct {
	meta metadata.VodMetadata
	err  error
}

func (f fakeMetadataStore) Get(ctx context.Context, vodID string) (metadata.VodMetadata, error) {
	return f.meta, f.err
}

func TestVideoUploaderRejectsMissingFinalVideo(t *testing.T) {
	w := &VideoUploader{}
	_, err := w.Run(context.Background(), "vod1", pipeline.Inputs{})
	require.Error(t, err)
}

func TestBuildVideoResourceAppliesUploadDefaults(t *testing.T) {
	meta := metadata.VodMetadata{
		Title:         "  Epic   <Stream> \U0001F3AE  ",
		Channel:       "some_channel",
		CapturedAtUtc: time.Now(),
	}

	video := buildVideoResource(meta, "a description", "", true, false)

	require.Equal(t, "Epic Stream", video.Snippet.Title)
	require.Equal(t, "a description", video.Snippet.Description)
	require.Equal(t, "20", video.Snippet.CategoryId)
	require.Equal(t, []string{"some_channel"}, video.Snippet.Tags)
	require.Equal(t, "private", video.Status.PrivacyStatus)
	require.False(t, video.Status.MadeForKids)
}

func TestBuildVideoResourceHonorsOverrides(t *testing.T) {
	meta := metadata.VodMetadata{Title: "Stream", Channel: "chan"}

	video := buildVideoResource(meta, "desc", "music", false, true)

	require.Equal(t, "10", video.Snippet.CategoryId)
	require.Equal(t, "public", video.Status.PrivacyStatus)
	require.True(t, video.Status.MadeForKids)
}

func TestVideoUploaderOutputPathReturnsRecordedRemoteID(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, "final.mp4")
	require.NoError(t, os.WriteFile(finalPath, []byte("fake video bytes"), 0o644))

	w := &VideoUploader{
		Metadata: fakeMetadataStore{meta: metadata.VodMetadata{
			VodID:   "vod1",
			Title:   "Epic Stream",
			Channel: "some_channel",
			Url:     "https://example.com/vod1",
		}},
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	}
	w.recordUploadedID("vod1", "")

	require.Empty(t, w.OutputPath("vod1"))
	w.recordUploadedID("vod1", "remote-123")
	require.Equal(t, "remote-123", w.OutputPath("vod1"))
}
