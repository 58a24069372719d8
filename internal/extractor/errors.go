package extractor

import "strings"

// Sentinel substrings an Engine's returned error is checked against to
// decide whether a proxy retry or engine fallback is worthwhile. The
// original service used the same substring-matching approach; a future
// revision could replace this with typed sentinel errors (see
// isRetriable) without touching call sites.
const (
	errTranscriptsDisabled = "transcripts disabled"
	errNoTranscriptFound   = "no transcript found"
	errVideoUnavailable    = "video unavailable"
)

var retriableSubstrings = []string{
	"forbidden",
	"rate limit",
	"timeout",
	"connection",
	"network",
	"403",
	"429",
}

// isRetriable reports whether err is worth retrying via proxy: a
// forbidden/rate-limit/timeout/connection/network-shaped failure.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retriableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isFatal reports whether err should abort the whole extraction
// (no fallback, no proxy retry) rather than being recovered from.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), errVideoUnavailable)
}

// isNoTranscript reports whether err indicates this engine found no
// transcript at all (as opposed to being blocked) — propagate to fallback
// without a proxy retry.
func isNoTranscript(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, errTranscriptsDisabled) || strings.Contains(msg, errNoTranscriptFound)
}
