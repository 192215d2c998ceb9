package video

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func TestItRejectsWhenNoVideoTrackPresent(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{CodecType: "audio"},
		},
	})
	require.ErrorContains(t, err, "no video stream found")
}

func TestItParsesWidthHeightAndFps(t *testing.T) {
	info, err := parseProbeOutput(&ffprobe.ProbeData{
		Format: &ffprobe.Format{
			DurationSeconds: 123.4,
		},
		Streams: []*ffprobe.Stream{
			{
				CodecType:     "video",
				CodecName:     "h264",
				Width:         1920,
				Height:        1080,
				AvgFrameRate:  "30000/1001",
				Duration:      "not-a-number",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1920), info.Width)
	require.Equal(t, int64(1080), info.Height)
	require.InDelta(t, 29.97, info.FPS, 0.01)
	require.Equal(t, 123.4, info.Duration)
}

func TestParseFps(t *testing.T) {
	fps, err := parseFps("")
	require.NoError(t, err)
	require.Equal(t, 0.0, fps)

	fps, err = parseFps("30/1")
	require.NoError(t, err)
	require.Equal(t, 30.0, fps)

	_, err = parseFps("30/0")
	require.Error(t, err)
}
