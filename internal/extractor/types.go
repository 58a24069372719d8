// Package extractor implements the dual-engine subtitle extraction
// strategy: a primary engine (direct transcript API) and a fallback engine
// (downloader-based), each attempted direct then via proxy on a retriable
// failure, followed by text normalization and adjacent-duplicate-phrase
// deduplication.
package extractor

import (
	"context"
	"net/http"
)

// RawSegment is one caption span as returned by an Engine, before
// normalization.
type RawSegment struct {
	Start    float64
	Duration float64
	Text     string
}

// Segment is a normalized, timed transcript span.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Method identifies which engine produced an Extracted result.
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

// Extracted is the uniform result both engines converge on.
type Extracted struct {
	VideoID   string
	Title     string
	Language  string
	Segments  []Segment
	PlainText string
	Method    Method
	ProxyUsed string
}

// RawResult is what an Engine hands back before normalization.
type RawResult struct {
	Title    string
	Segments []RawSegment
}

// Engine fetches raw captions for a video, either directly or through the
// supplied HTTP client (which may be proxy-routed). The concrete
// implementations wrap third-party transcript APIs/downloaders external
// to this repository; Engine is the seam that keeps them swappable.
type Engine interface {
	Fetch(ctx context.Context, client *http.Client, videoID, language string) (RawResult, error)
}
