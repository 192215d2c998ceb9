package workers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	ffmpeglib "github.com/u2takey/ffmpeg-go"
	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/pipeline"
	"github.com/vodarchiver/archiver/video"
)

// chatSidebarWidth is the width, in pixels, of the rendered chat sidecar.
const chatSidebarWidth = 400

// chatMessageDisplaySeconds is how long each chat line stays on screen.
const chatMessageDisplaySeconds = 6

// ChatRenderer is the ChatRenderer worker from spec.md §4.3: renders the
// downloaded chat log as a side-car video matching the source's frame rate
// and height, writing chats/{vod_id}_chat.mp4.
type ChatRenderer struct {
	Prober video.Prober
}

var _ pipeline.Worker = (*ChatRenderer)(nil)

func (w *ChatRenderer) OutputPath(vodID string) string {
	return filepath.Join(config.WorkDir, "chats", vodID+"_chat.mp4")
}

func (w *ChatRenderer) Run(ctx context.Context, vodID string, inputs pipeline.Inputs) (<-chan pipeline.StatusUpdate, error) {
	if inputs.VodFilePath == "" {
		return nil, pipeline.Permanent(fmt.Errorf("chat render requires a downloaded vod file"))
	}
	if inputs.ChatTextFilePath == "" {
		return nil, pipeline.Permanent(fmt.Errorf("chat render requires a downloaded chat log"))
	}

	updates := make(chan pipeline.StatusUpdate, 4)
	go func() {
		defer close(updates)
		if err := w.render(ctx, vodID, inputs, updates); err != nil {
			updates <- pipeline.StatusUpdate{Err: err}
		}
	}()
	return updates, nil
}

func (w *ChatRenderer) render(ctx context.Context, vodID string, inputs pipeline.Inputs, updates chan<- pipeline.StatusUpdate) error {
	updates <- pipeline.StatusUpdate{Message: "probing source video"}
	info, err := w.Prober.ProbeFile(ctx, inputs.VodFilePath)
	if err != nil {
		return fmt.Errorf("probing source video: %w", err)
	}
	if info.Height <= 0 || info.FPS <= 0 {
		return pipeline.Permanent(fmt.Errorf("source video has invalid height=%d fps=%f", info.Height, info.FPS))
	}

	messages, err := readChatMessages(inputs.ChatTextFilePath)
	if err != nil {
		return pipeline.Permanent(err)
	}

	outputPath := w.OutputPath(vodID)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	subtitlePath := outputPath + ".srt"
	if err := writeSRT(subtitlePath, messages, chatMessageDisplaySeconds); err != nil {
		return fmt.Errorf("writing subtitle track: %w", err)
	}
	defer os.Remove(subtitlePath)

	updates <- pipeline.StatusUpdate{Message: fmt.Sprintf("rendering %d chat lines", len(messages))}

	canvas := fmt.Sprintf("color=c=black:s=%dx%d:r=%g:d=%g", chatSidebarWidth, info.Height, info.FPS, info.Duration)

	var ffmpegErr bytes.Buffer
	err = ffmpeglib.
		Input(canvas, ffmpeglib.KwArgs{"f": "lavfi"}).
		Output(outputPath, ffmpeglib.KwArgs{
			"vf":     fmt.Sprintf("subtitles=%s", subtitlePath),
			"c:v":    "libx264",
			"preset": "veryfast",
			"pix_fmt": "yuv420p",
		}).
		OverWriteOutput().WithErrorOutput(&ffmpegErr).Run()
	if err != nil {
		log.LogError(vodID, "ffmpeg failed rendering chat video", err, "stderr", ffmpegErr.String())
		return fmt.Errorf("rendering chat video: %w", err)
	}

	updates <- pipeline.StatusUpdate{Message: "chat render complete"}
	return nil
}
