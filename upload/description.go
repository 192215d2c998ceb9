// Package upload renders the upload-time metadata (description text,
// category/privacy defaults) documented in spec.md §6.
package upload

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/vodarchiver/archiver/metadata"
)

// descriptionText is the teacher's style of keeping small templated text
// inline rather than in a separate asset file (mirrors config's version/help
// text generation).
const descriptionText = `Archived VOD from {{.Channel}}, originally streamed {{.CapturedAtUtc.Format "2006-01-02"}}.

Original: {{.Url}}
`

var descriptionTemplate = template.Must(template.New("description").Parse(descriptionText))

// DescriptionTemplate renders the upload description for a VOD from its
// metadata, including the original URL, channel, and stream date per
// spec.md §6.
func DescriptionTemplate(m metadata.VodMetadata) (string, error) {
	var b strings.Builder
	if err := descriptionTemplate.Execute(&b, m); err != nil {
		return "", fmt.Errorf("rendering upload description for vod %s: %w", m.VodID, err)
	}
	return b.String(), nil
}

// categoryIDs maps the few categories spec.md's upload metadata can specify
// to the Youtube Data API's numeric video category IDs.
var categoryIDs = map[string]string{
	"gaming":        "20",
	"music":         "10",
	"entertainment": "24",
	"people_blogs":  "22",
	"education":     "27",
}

// CategoryID resolves a category name to the upload API's numeric ID,
// defaulting to Gaming (spec.md §6's only named default) for anything
// unrecognized.
func CategoryID(category string) string {
	if id, ok := categoryIDs[strings.ToLower(category)]; ok {
		return id
	}
	return categoryIDs["gaming"]
}

// Tags builds the tag list for an upload: spec.md §6 requires the channel
// identifier to be included.
func Tags(channel string) []string {
	if channel == "" {
		return nil
	}
	return []string{channel}
}
