// Package video probes source files for the frame-rate and resolution
// information the chat renderer and final renderer need to configure their
// output.
package video

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// Info is the subset of a probed video file the pipeline cares about.
type Info struct {
	Width    int64
	Height   int64
	FPS      float64
	Duration float64
	Codec    string
}

type Prober interface {
	ProbeFile(ctx context.Context, path string) (Info, error)
}

type Probe struct{}

func (p Probe) ProbeFile(ctx context.Context, path string) (info Info, err error) {
	var data *ffprobe.ProbeData

	operation := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		data, err = ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3)); err != nil {
		return Info{}, fmt.Errorf("error probing %s: %w", path, err)
	}
	return parseProbeOutput(data)
}

func parseProbeOutput(data *ffprobe.ProbeData) (Info, error) {
	videoStream := data.FirstVideoStream()
	if videoStream == nil {
		return Info{}, errors.New("no video stream found")
	}
	if data.Format == nil {
		return Info{}, errors.New("format information missing from probe")
	}

	fps, err := parseFps(videoStream.AvgFrameRate)
	if err != nil {
		return Info{}, fmt.Errorf("error parsing avg fps from probed data: %w", err)
	}
	if fps == 0 {
		fps, err = parseFps(videoStream.RFrameRate)
		if err != nil {
			return Info{}, fmt.Errorf("error parsing real fps from probed data: %w", err)
		}
	}

	duration, err := strconv.ParseFloat(videoStream.Duration, 64)
	if err != nil {
		duration = data.Format.DurationSeconds
	}

	return Info{
		Width:    int64(videoStream.Width),
		Height:   int64(videoStream.Height),
		FPS:      fps,
		Duration: duration,
		Codec:    videoStream.CodecName,
	}, nil
}

// parseFps parses an ffprobe "num/den" frame-rate string.
func parseFps(framerate string) (float64, error) {
	if framerate == "" {
		return 0, nil
	}
	parts := strings.SplitN(framerate, "/", 2)
	if len(parts) < 2 {
		fps, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing framerate: %w", err)
		}
		return fps, nil
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate numerator: %w", err)
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate denominator: %w", err)
	}
	if den == 0 {
		if num == 0 {
			return 0, nil
		}
		return 0, errors.New("invalid framerate denominator 0")
	}
	return float64(num) / float64(den), nil
}
