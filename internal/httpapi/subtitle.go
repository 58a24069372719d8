package httpapi

import (
	"github.com/7and1/subtitleapi/internal/orchestrator"
	"github.com/7and1/subtitleapi/internal/store"
)

// subtitleBody is the wire shape of a resolved transcript, shared by the
// single-video GET/POST handlers.
type subtitleBody struct {
	VideoID          string          `json:"video_id"`
	Language         string          `json:"language"`
	Title            *string         `json:"title,omitempty"`
	Segments         []store.Segment `json:"segments"`
	PlainText        string          `json:"plain_text"`
	ExtractionMethod *string         `json:"extraction_method,omitempty"`
	AutoGenerated    bool            `json:"auto_generated"`
	Cached           bool            `json:"cached"`
	CacheTier        string          `json:"cache_tier,omitempty"`
}

func fromCached(c *orchestrator.Cached) subtitleBody {
	body := subtitleBody{
		VideoID:       c.VideoID,
		Language:      c.Language,
		Title:         c.Title,
		Segments:      c.Segments,
		PlainText:     c.PlainText,
		AutoGenerated: c.AutoGenerated,
		Cached:        true,
		CacheTier:     string(c.Tier),
	}
	if c.ExtractionMethod != nil {
		m := string(*c.ExtractionMethod)
		body.ExtractionMethod = &m
	}
	return body
}
