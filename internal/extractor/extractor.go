package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/7and1/subtitleapi/internal/proxypool"
)

// Options configures a single Extract call.
type Options struct {
	VideoID    string
	Language   string
	CleanForAI bool
	Timeout    time.Duration
}

// attempt records one (engine, routing) combination tried during an
// Extract call, for logging/debugging by the caller.
type attempt struct {
	method Method
	proxy  string
	err    error
}

// Extract runs the dual-engine extraction strategy: primary engine direct,
// then (on a retriable error, if a proxy is available) primary via proxy,
// then fallback engine direct, then (on a retriable error, if a proxy is
// available) fallback via proxy. A fatal error (video unavailable) aborts
// immediately without trying further combinations. Returns the first
// successful result, normalizing segment text when opts.CleanForAI is set.
func Extract(ctx context.Context, opts Options, pool *proxypool.Pool, primary, fallback Engine) (Extracted, error) {
	var attempts []attempt

	if res, proxy, err := tryEngine(ctx, opts, pool, primary, MethodPrimary, false); err == nil {
		return toExtracted(opts, res, MethodPrimary, proxy), nil
	} else {
		attempts = append(attempts, attempt{MethodPrimary, "", err})
		if isFatal(err) {
			return Extracted{}, fmt.Errorf("extraction failed: %w", err)
		}
		if isRetriable(err) && pool.HasProxies() {
			if res, proxy, perr := tryEngine(ctx, opts, pool, primary, MethodPrimary, true); perr == nil {
				return toExtracted(opts, res, MethodPrimary, proxy), nil
			} else {
				attempts = append(attempts, attempt{MethodPrimary, proxy, perr})
				if isFatal(perr) {
					return Extracted{}, fmt.Errorf("extraction failed: %w", perr)
				}
			}
		}
	}

	if res, proxy, err := tryEngine(ctx, opts, pool, fallback, MethodFallback, false); err == nil {
		return toExtracted(opts, res, MethodFallback, proxy), nil
	} else {
		attempts = append(attempts, attempt{MethodFallback, "", err})
		if isFatal(err) {
			return Extracted{}, fmt.Errorf("extraction failed: %w", err)
		}
		if isRetriable(err) && pool.HasProxies() {
			if res, proxy, perr := tryEngine(ctx, opts, pool, fallback, MethodFallback, true); perr == nil {
				return toExtracted(opts, res, MethodFallback, proxy), nil
			} else {
				attempts = append(attempts, attempt{MethodFallback, proxy, perr})
			}
		}
	}

	return Extracted{}, fmt.Errorf("extraction failed after %d attempts: %w", len(attempts), attempts[len(attempts)-1].err)
}

// tryEngine fetches through e once, either directly or via a proxy chosen
// from pool, reporting success/failure back to the pool when a proxy was
// used.
func tryEngine(ctx context.Context, opts Options, pool *proxypool.Pool, e Engine, method Method, viaProxy bool) (RawResult, string, error) {
	if !viaProxy {
		client := newDirectClient(opts.Timeout)
		res, err := e.Fetch(ctx, client, opts.VideoID, opts.Language)
		return res, "", err
	}

	choice, ok := pool.Choose(ctx)
	if !ok {
		return RawResult{}, "", fmt.Errorf("no proxy available for %s", method)
	}
	client, err := newProxyClient(choice.URL, opts.Timeout)
	if err != nil {
		pool.MarkFailure(ctx, choice)
		return RawResult{}, choice.ID, err
	}

	res, err := e.Fetch(ctx, client, opts.VideoID, opts.Language)
	if err != nil {
		pool.MarkFailure(ctx, choice)
		return RawResult{}, choice.ID, err
	}
	pool.MarkSuccess(ctx, choice)
	return res, choice.ID, nil
}

func toExtracted(opts Options, res RawResult, method Method, proxyID string) Extracted {
	segments := make([]Segment, 0, len(res.Segments))
	rawTexts := make([]string, 0, len(res.Segments))
	for _, s := range res.Segments {
		segments = append(segments, Segment{Start: s.Start, Duration: s.Duration, Text: s.Text})
		rawTexts = append(rawTexts, s.Text)
	}

	plainText := Normalize(rawTexts)
	if !opts.CleanForAI {
		joined := make([]string, 0, len(rawTexts))
		for _, t := range rawTexts {
			if t != "" {
				joined = append(joined, t)
			}
		}
		plainText = joinSpace(joined)
	}

	return Extracted{
		VideoID:   opts.VideoID,
		Title:     res.Title,
		Language:  opts.Language,
		Segments:  segments,
		PlainText: plainText,
		Method:    method,
		ProxyUsed: proxyID,
	}
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
