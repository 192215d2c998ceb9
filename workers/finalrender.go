package workers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	ffmpeglib "github.com/u2takey/ffmpeg-go"
	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/pipeline"
)

// hardwareEncoder names an ffmpeg video encoder and the preference order
// FinalRenderer tries them in: AMD, then NVIDIA, then Intel, then software.
type hardwareEncoder struct {
	name string
	args map[string]string
}

var hardwareEncoderPreference = []hardwareEncoder{
	{name: "h264_amf", args: map[string]string{"c:v": "h264_amf", "quality": "speed"}},
	{name: "h264_nvenc", args: map[string]string{"c:v": "h264_nvenc", "preset": "p4"}},
	{name: "h264_qsv", args: map[string]string{"c:v": "h264_qsv", "preset": "fast"}},
	{name: "libx264", args: map[string]string{"c:v": "libx264", "preset": "veryfast"}},
}

// encoderProbeTimeout bounds the `ffmpeg -encoders` probe.
const encoderProbeTimeout = 5 * time.Second

// FinalRenderer is the FinalRenderer worker from spec.md §4.3: combines the
// source vod and the rendered chat sidecar side-by-side into
// finals/{vod_id}_final.mp4.
type FinalRenderer struct {
	// availableEncoders overrides encoder detection in tests; nil means
	// probe the real ffmpeg binary.
	availableEncoders func(ctx context.Context) (map[string]bool, error)
}

var _ pipeline.Worker = (*FinalRenderer)(nil)

func (w *FinalRenderer) OutputPath(vodID string) string {
	return filepath.Join(config.WorkDir, "finals", vodID+"_final.mp4")
}

func (w *FinalRenderer) Run(ctx context.Context, vodID string, inputs pipeline.Inputs) (<-chan pipeline.StatusUpdate, error) {
	if inputs.VodFilePath == "" {
		return nil, pipeline.Permanent(fmt.Errorf("final render requires a downloaded vod file"))
	}
	if inputs.ChatVideoFilePath == "" {
		return nil, pipeline.Permanent(fmt.Errorf("final render requires a rendered chat video"))
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

func (w *FinalRenderer) render(ctx context.Context, vodID string, inputs pipeline.Inputs, updates chan<- pipeline.StatusUpdate) error {
	probe := w.availableEncoders
	if probe == nil {
		probe = probeFfmpegEncoders
	}
	encoders, err := probe(ctx)
	if err != nil {
		return fmt.Errorf("probing ffmpeg encoders: %w", err)
	}

	encoder := selectEncoder(encoders)
	updates <- pipeline.StatusUpdate{Message: fmt.Sprintf("compositing with encoder %s", encoder.name)}

	outputPath := w.OutputPath(vodID)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	outputArgs := ffmpeglib.KwArgs{"pix_fmt": "yuv420p"}
	for k, v := range encoder.args {
		outputArgs[k] = v
	}

	streams := []*ffmpeglib.Stream{
		ffmpeglib.Input(inputs.VodFilePath),
		ffmpeglib.Input(inputs.ChatVideoFilePath),
	}

	var ffmpegErr bytes.Buffer
	err = ffmpeglib.
		Filter(streams, "hstack", ffmpeglib.Args{}, ffmpeglib.KwArgs{"inputs": 2}).
		Output(outputPath, outputArgs).
		OverWriteOutput().WithErrorOutput(&ffmpegErr).Run()
	if err != nil {
		log.LogError(vodID, "ffmpeg failed compositing final video", err, "stderr", ffmpegErr.String())
		return fmt.Errorf("compositing final video: %w", err)
	}

	updates <- pipeline.StatusUpdate{Message: "final render complete"}
	return nil
}

// selectEncoder walks hardwareEncoderPreference in order (AMD, NVIDIA,
// Intel, software) and returns the first one present in encoders, falling
// back to software libx264 if none of the hardware encoders are compiled
// into the local ffmpeg binary.
func selectEncoder(encoders map[string]bool) hardwareEncoder {
	for _, candidate := range hardwareEncoderPreference {
		if encoders[candidate.name] {
			return candidate
		}
	}
	return hardwareEncoderPreference[len(hardwareEncoderPreference)-1]
}

// probeFfmpegEncoders shells out to `ffmpeg -encoders` and reports which of
// hardwareEncoderPreference's candidates are compiled in, mirroring the
// teacher's exec.Command + bytes.Buffer stdout capture idiom.
func probeFfmpegEncoders(ctx context.Context) (map[string]bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffmpeg", "-hide_banner", "-encoders")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("listing ffmpeg encoders: %w (%s)", err, stderr.String())
	}

	available := make(map[string]bool, len(hardwareEncoderPreference))
	output := stdout.String()
	for _, candidate := range hardwareEncoderPreference {
		available[candidate.name] = bytes.Contains([]byte(output), []byte(candidate.name))
	}
	return available, nil
}
