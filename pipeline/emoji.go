package pipeline

import (
	"context"
	"regexp"

	"github.com/poiesic/docpipe/core"
)

var emojiPattern = regexp.MustCompile("[" +
	`\x{1F600}-\x{1F64F}` + // emoticons
	`\x{1F300}-\x{1F5FF}` + // symbols and pictographs
	`\x{1F680}-\x{1F6FF}` + // transport and map
	`\x{1F1E0}-\x{1F1FF}` + // flags
	`\x{2702}-\x{27B0}` +
	`\x{24C2}-\x{1F251}` +
	"]+")

// StripEmoji removes emoji runs from s.
func StripEmoji(s string) string {
	return emojiPattern.ReplaceAllString(s, "")
}

// EmojiCleaner strips emoji from record text and, when Metadata is set,
// from string metadata values.
type EmojiCleaner struct {
	Metadata bool
}

var _ Processor = EmojiCleaner{}

func (c EmojiCleaner) Process(_ context.Context, rec *core.Record) ([]*core.Record, error) {
	if rec.TextChunk != nil {
		rec.TextChunk = core.StringPtr(StripEmoji(*rec.TextChunk))
	}
	if c.Metadata {
		for k, v := range rec.Metadata {
			if s, ok := v.(string); ok {
				rec.Metadata[k] = StripEmoji(s)
			}
		}
	}
	return []*core.Record{rec}, nil
}
