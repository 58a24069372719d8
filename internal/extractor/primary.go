package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// timedTextEngine is the primary extraction engine: it queries YouTube's
// public timedtext endpoint directly for a caption track in the requested
// language, mirroring what the original service's transcript-API
// dependency does under the hood without shelling out to an external
// process.
type timedTextEngine struct{}

// NewPrimaryEngine returns the direct-transcript-API engine.
func NewPrimaryEngine() Engine {
	return timedTextEngine{}
}

func (timedTextEngine) Fetch(ctx context.Context, client *http.Client, videoID, language string) (RawResult, error) {
	title, err := fetchOEmbedTitle(ctx, client, videoID)
	if err != nil {
		title = ""
	}

	endpoint := "https://www.youtube.com/api/timedtext?" + url.Values{
		"lang": {language},
		"v":    {videoID},
		"fmt":  {"json3"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RawResult{}, fmt.Errorf("primary engine: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return RawResult{}, fmt.Errorf("primary engine: connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return RawResult{}, fmt.Errorf("primary engine: forbidden or rate limit (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return RawResult{}, fmt.Errorf("primary engine: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResult{}, fmt.Errorf("primary engine: read response: %w", err)
	}
	if len(body) == 0 {
		return RawResult{}, fmt.Errorf("no transcript found for video %s", videoID)
	}

	segments, err := parseJSON3(body)
	if err != nil {
		return RawResult{}, fmt.Errorf("primary engine: parse transcript: %w", err)
	}
	if len(segments) == 0 {
		return RawResult{}, fmt.Errorf("no transcript found for video %s", videoID)
	}

	return RawResult{Title: title, Segments: segments}, nil
}

// fetchOEmbedTitle resolves a video's display title via the public oEmbed
// endpoint. Title lookup failures are non-fatal to extraction.
func fetchOEmbedTitle(ctx context.Context, client *http.Client, videoID string) (string, error) {
	endpoint := "https://www.youtube.com/oembed?" + url.Values{
		"url":    {"https://www.youtube.com/watch?v=" + videoID},
		"format": {"json"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(resp.Body, &payload); err != nil {
		return "", err
	}
	return payload.Title, nil
}
