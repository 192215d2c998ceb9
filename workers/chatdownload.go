package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/pipeline"
)

// ChatDownloader is the ChatDownloader worker from spec.md §4.3: fetches
// the chat log to chats/{vod_id}.json.
type ChatDownloader struct {
	Source SourcePlatform
}

var _ pipeline.Worker = (*ChatDownloader)(nil)

func (w *ChatDownloader) OutputPath(vodID string) string {
	return filepath.Join(config.WorkDir, "chats", vodID+".json")
}

func (w *ChatDownloader) Run(ctx context.Context, vodID string, inputs pipeline.Inputs) (<-chan pipeline.StatusUpdate, error) {
	url := w.Source.ChatDownloadURL(vodID)
	if url == "" {
		return nil, pipeline.Permanent(fmt.Errorf("no chat URL known for vod %s", vodID))
	}

	updates := make(chan pipeline.StatusUpdate, 8)
	go func() {
		defer close(updates)
		updates <- pipeline.StatusUpdate{Message: "starting chat download"}
		client := newRetryableClient(20 * time.Minute)
		if err := downloadToFile(ctx, client, vodID, url, w.OutputPath(vodID), updates); err != nil {
			updates <- pipeline.StatusUpdate{Err: err}
			return
		}
		updates <- pipeline.StatusUpdate{Message: "chat download complete"}
	}()
	return updates, nil
}
