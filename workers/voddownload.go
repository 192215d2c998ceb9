package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/pipeline"
)

// VodDownloader is the VodDownloader worker from spec.md §4.3: fetches the
// source video to vods/{vod_id}.mp4.
type VodDownloader struct {
	Source SourcePlatform
}

var _ pipeline.Worker = (*VodDownloader)(nil)

func (w *VodDownloader) OutputPath(vodID string) string {
	return filepath.Join(config.WorkDir, "vods", vodID+".mp4")
}

func (w *VodDownloader) Run(ctx context.Context, vodID string, inputs pipeline.Inputs) (<-chan pipeline.StatusUpdate, error) {
	url := w.Source.VodDownloadURL(vodID)
	if url == "" {
		return nil, pipeline.Permanent(fmt.Errorf("no download URL known for vod %s", vodID))
	}

	updates := make(chan pipeline.StatusUpdate, 8)
	go func() {
		defer close(updates)
		updates <- pipeline.StatusUpdate{Message: "starting video download"}
		client := newRetryableClient(2 * time.Hour)
		if err := downloadToFile(ctx, client, vodID, url, w.OutputPath(vodID), updates); err != nil {
			updates <- pipeline.StatusUpdate{Err: err}
			return
		}
		updates <- pipeline.StatusUpdate{Message: "video download complete"}
	}()
	return updates, nil
}
