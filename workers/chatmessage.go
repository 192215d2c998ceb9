package workers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ChatMessage is one line of the chat log produced by ChatDownloader. The
// exact source-platform chat format is an external collaborator's concern
// (spec.md §1); this is the shape the renderer needs from it.
type ChatMessage struct {
	OffsetSeconds float64 `json:"offset_seconds"`
	Author        string  `json:"author"`
	Message       string  `json:"message"`
}

func readChatMessages(path string) ([]ChatMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chat log: %w", err)
	}
	defer f.Close()

	var messages []ChatMessage
	if err := json.NewDecoder(f).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decoding chat log: %w", err)
	}
	return messages, nil
}

// writeSRT renders messages as an SRT subtitle track, each shown for
// displaySeconds, so ffmpeg's subtitles filter can burn them into the chat
// sidecar video.
func writeSRT(path string, messages []ChatMessage, displaySeconds float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating subtitle file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, m := range messages {
		start := time.Duration(m.OffsetSeconds * float64(time.Second))
		end := start + time.Duration(displaySeconds*float64(time.Second))
		fmt.Fprintf(w, "%d\n%s --> %s\n%s: %s\n\n", i+1, srtTimestamp(start), srtTimestamp(end), m.Author, m.Message)
	}
	return w.Flush()
}

func srtTimestamp(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
