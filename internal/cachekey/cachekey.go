// Package cachekey derives canonical cache, lock, rate-limit, and proxy
// identity keys from request-level identifiers. All functions are pure.
package cachekey

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// VideoIDPattern matches the fixed-shape YouTube video identifier.
var VideoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// videoIDInURL matches an 11-char video ID embedded in a URL path or query.
var videoIDInURL = regexp.MustCompile(`(?:v=|/|embed/|shorts/)([A-Za-z0-9_-]{11})(?:[?&]|$)`)

// IsValidVideoID reports whether id has the canonical 11-character shape.
func IsValidVideoID(id string) bool {
	return VideoIDPattern.MatchString(id)
}

// ExtractVideoID pulls an 11-character video ID out of a full video URL.
// Returns "", false if no candidate is found.
func ExtractVideoID(videoURL string) (string, bool) {
	m := videoIDInURL.FindStringSubmatch(videoURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Cache builds the Tier-2/Tier-3 cache key for a (video, language) pair.
func Cache(videoID, language string) string {
	return fmt.Sprintf("youtube:subtitle:%s:%s", videoID, language)
}

// Lock builds the coalescing-lock key guarding a cold read of ck.
func Lock(ck string) string {
	return "lock:" + ck
}

// Rate builds the rate-limiter bucket key for a (client IP, endpoint) pair.
// The endpoint is hashed to keep key length and cardinality bounded.
func Rate(clientIP, endpoint string) string {
	sum := md5.Sum([]byte(endpoint))
	return fmt.Sprintf("ratelimit:%s:%s", clientIP, hex.EncodeToString(sum[:])[:8])
}

// ProxyID derives the stable identity of a proxy from its URL.
func ProxyID(proxyURL string) string {
	sum := sha256.Sum256([]byte(proxyURL))
	return hex.EncodeToString(sum[:])[:16]
}

// ProxyFailuresKey builds the Tier-2 key tracking a proxy's failure count.
func ProxyFailuresKey(proxyID string) string {
	return "proxy:fails:" + proxyID
}

// ProxyLastFailureKey builds the Tier-2 key tracking a proxy's last failure time.
func ProxyLastFailureKey(proxyID string) string {
	return "proxy:last_failure:" + proxyID
}
