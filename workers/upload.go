package workers

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/vodarchiver/archiver/metadata"
	"github.com/vodarchiver/archiver/pipeline"
	"github.com/vodarchiver/archiver/sanitize"
	"github.com/vodarchiver/archiver/upload"
)

// VideoUploader is the VideoUploader worker from spec.md §4.3: uploads the
// composited final video and records the remote id on the job.
//
// Unlike the other workers, its "output" is not a deterministic function of
// VodId — it is assigned by the upload API once the call completes. Run
// records it in uploadedIDs and OutputPath reads it back; the Dispatcher
// only calls OutputPath after draining Run's update channel to completion,
// so the write always happens-before the read.
type VideoUploader struct {
	Metadata    metadata.Store
	TokenSource oauth2.TokenSource

	// Category, Private, and MadeForKids carry spec.md §6's upload metadata
	// defaults (gaming / private / false) or an operator override; an empty
	// Category falls back to "gaming".
	Category    string
	Private     bool
	MadeForKids bool

	// newService is a seam for tests; nil means build a real youtube.Service.
	newService func(ctx context.Context, tokenSource oauth2.TokenSource) (*youtube.Service, error)

	mu         sync.Mutex
	uploadedID map[string]string
}

var _ pipeline.Worker = (*VideoUploader)(nil)

func (w *VideoUploader) OutputPath(vodID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uploadedID[vodID]
}

func (w *VideoUploader) recordUploadedID(vodID, remoteID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.uploadedID == nil {
		w.uploadedID = make(map[string]string)
	}
	w.uploadedID[vodID] = remoteID
}

func (w *VideoUploader) Run(ctx context.Context, vodID string, inputs pipeline.Inputs) (<-chan pipeline.StatusUpdate, error) {
	if inputs.FinalVideoFilePath == "" {
		return nil, pipeline.Permanent(fmt.Errorf("upload requires a composited final video"))
	}

	updates := make(chan pipeline.StatusUpdate, 4)
	go func() {
		defer close(updates)
		if err := w.upload(ctx, vodID, inputs, updates); err != nil {
			updates <- pipeline.StatusUpdate{Err: err}
		}
	}()
	return updates, nil
}

func (w *VideoUploader) upload(ctx context.Context, vodID string, inputs pipeline.Inputs, updates chan<- pipeline.StatusUpdate) error {
	meta, err := w.Metadata.Get(ctx, vodID)
	if err != nil {
		return fmt.Errorf("reading vod metadata: %w", err)
	}

	description, err := upload.DescriptionTemplate(meta)
	if err != nil {
		return pipeline.Permanent(err)
	}

	file, err := os.Open(inputs.FinalVideoFilePath)
	if err != nil {
		return fmt.Errorf("opening final video: %w", err)
	}
	defer file.Close()

	newService := w.newService
	if newService == nil {
		newService = newYoutubeService
	}
	service, err := newService(ctx, w.TokenSource)
	if err != nil {
		return fmt.Errorf("creating upload client: %w", err)
	}

	video := buildVideoResource(meta, description, w.Category, w.Private, w.MadeForKids)

	updates <- pipeline.StatusUpdate{Message: "starting upload"}
	call := service.Videos.Insert([]string{"snippet", "status"}, video).Media(file).Context(ctx)
	response, err := call.Do()
	if err != nil {
		return fmt.Errorf("uploading video: %w", err)
	}

	w.recordUploadedID(vodID, response.Id)
	updates <- pipeline.StatusUpdate{Message: fmt.Sprintf("upload complete, id=%s", response.Id)}
	return nil
}

func newYoutubeService(ctx context.Context, tokenSource oauth2.TokenSource) (*youtube.Service, error) {
	return youtube.NewService(ctx, option.WithTokenSource(tokenSource))
}

// buildVideoResource applies spec.md §6's sanitization and upload metadata
// defaults (category gaming, privacy private, not made for kids, channel
// tag) to produce the resource the upload API call sends. An empty category
// falls back to "gaming"; private/madeForKids are passed through as given.
func buildVideoResource(meta metadata.VodMetadata, description, category string, private, madeForKids bool) *youtube.Video {
	privacyStatus := "public"
	if private {
		privacyStatus = "private"
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       sanitize.Title(meta.Title),
			Description: description,
			CategoryId:  upload.CategoryID(category),
			Tags:        upload.Tags(meta.Channel),
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacyStatus,
			MadeForKids:   madeForKids,
		},
	}
}
