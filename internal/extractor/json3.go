package extractor

import (
	"encoding/json"
	"io"
	"strings"
)

// decodeJSON is a small shared helper for the engines' response bodies.
func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// json3Payload mirrors the wire shape of the fallback engine's caption
// track format: a flat list of timed events, each carrying one or more
// UTF-8 text segments.
type json3Payload struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs   float64    `json:"tStartMs"`
	DDurationMs float64   `json:"dDurationMs"`
	Segs       []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// parseJSON3 decodes a fallback-engine caption payload into RawSegments.
// Events with empty text (after joining and trimming) are skipped.
func parseJSON3(raw []byte) ([]RawSegment, error) {
	var payload json3Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	segments := make([]RawSegment, 0, len(payload.Events))
	for _, ev := range payload.Events {
		var parts []string
		for _, seg := range ev.Segs {
			parts = append(parts, strings.ReplaceAll(seg.UTF8, "\n", " "))
		}
		text := strings.TrimSpace(strings.Join(parts, ""))
		if text == "" {
			continue
		}
		segments = append(segments, RawSegment{
			Start:    ev.TStartMs / 1000,
			Duration: ev.DDurationMs / 1000,
			Text:     text,
		})
	}
	return segments, nil
}
