// Package proxypool manages the set of upstream egress proxies the
// extractor may route through: availability based on a failure-count
// cooldown, random selection among available entries, and a degraded
// fallback when none are currently available.
package proxypool

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/7and1/subtitleapi/internal/cachekey"
)

// Counters is the Tier-2-backed store of per-proxy failure counts and
// cooldown timestamps. Implemented by internal/rediscache in production.
type Counters interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string) bool
	Incr(ctx context.Context, key string) (int64, error)
}

// Source supplies the current list of proxy URLs. The default EnvSource
// reads a static list once at startup; a future Source could poll a file
// or discovery service without the Pool needing to change.
type Source interface {
	List() []string
}

// EnvSource is a Source backed by a fixed, in-memory list of proxy URLs
// (as parsed from YT_PROXY_URLS at startup).
type EnvSource struct {
	urls []string
}

// NewEnvSource builds an EnvSource from comma-separated URLs and optional
// "user:pass" credentials injected into each URL's userinfo when the URL
// itself carries none.
func NewEnvSource(rawURLs []string, auth string) *EnvSource {
	urls := make([]string, 0, len(rawURLs))
	for _, raw := range rawURLs {
		urls = append(urls, applyAuth(raw, auth))
	}
	return &EnvSource{urls: urls}
}

func (s *EnvSource) List() []string { return s.urls }

func applyAuth(raw, auth string) string {
	if auth == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return raw
	}
	parts := strings.SplitN(auth, ":", 2)
	if len(parts) != 2 {
		return raw
	}
	u.User = url.UserPassword(parts[0], parts[1])
	return u.String()
}

// Choice is a proxy selected for use by the extractor.
type Choice struct {
	ID  string
	URL string
}

// Pool tracks proxy availability and exposes random selection among
// currently-available entries.
type Pool struct {
	source      Source
	counters    Counters
	baseCooldown time.Duration
	maxFailures int
}

// New creates a Pool reading proxies from source and tracking failures in
// counters.
func New(source Source, counters Counters, cooldownSeconds, maxFailures int) *Pool {
	return &Pool{
		source:       source,
		counters:     counters,
		baseCooldown: time.Duration(cooldownSeconds) * time.Second,
		maxFailures:  maxFailures,
	}
}

// HasProxies reports whether any proxy is configured at all.
func (p *Pool) HasProxies() bool {
	return len(p.source.List()) > 0
}

// IsAvailable reports whether the proxy at urlStr is outside its cooldown
// window: failures < maxFailures, or the cooldown window (baseCooldown *
// failures) has elapsed since the last failure.
func (p *Pool) IsAvailable(ctx context.Context, urlStr string) bool {
	id := cachekey.ProxyID(urlStr)
	failures := p.failureCount(ctx, id)
	if failures < p.maxFailures {
		return true
	}

	lastFailureStr, ok := p.counters.Get(ctx, cachekey.ProxyLastFailureKey(id))
	if !ok {
		return true
	}
	lastFailureUnix, err := strconv.ParseInt(lastFailureStr, 10, 64)
	if err != nil {
		return true
	}
	cooldown := time.Duration(failures) * p.baseCooldown
	return time.Since(time.Unix(lastFailureUnix, 0)) > cooldown
}

func (p *Pool) failureCount(ctx context.Context, proxyID string) int {
	v, ok := p.counters.Get(ctx, cachekey.ProxyFailuresKey(proxyID))
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Choose shuffles the configured proxy list and returns the first
// available entry. If none are available, it returns a random entry
// (degraded mode) rather than refusing to proceed. Returns false if no
// proxies are configured at all.
func (p *Pool) Choose(ctx context.Context) (Choice, bool) {
	urls := p.source.List()
	if len(urls) == 0 {
		return Choice{}, false
	}

	shuffled := make([]string, len(urls))
	copy(shuffled, urls)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	for _, u := range shuffled {
		if p.IsAvailable(ctx, u) {
			return Choice{ID: cachekey.ProxyID(u), URL: u}, true
		}
	}

	degraded := shuffled[rand.Intn(len(shuffled))]
	return Choice{ID: cachekey.ProxyID(degraded), URL: degraded}, true
}

// MarkSuccess clears a proxy's failure counters.
func (p *Pool) MarkSuccess(ctx context.Context, c Choice) {
	p.counters.Delete(ctx, cachekey.ProxyFailuresKey(c.ID))
	p.counters.Delete(ctx, cachekey.ProxyLastFailureKey(c.ID))
}

// MarkFailure increments a proxy's failure counter and stamps the current
// time as its last failure, with a 24h TTL on that timestamp.
func (p *Pool) MarkFailure(ctx context.Context, c Choice) {
	p.counters.Incr(ctx, cachekey.ProxyFailuresKey(c.ID))
	p.counters.Set(ctx, cachekey.ProxyLastFailureKey(c.ID), fmt.Sprintf("%d", time.Now().Unix()), 24*time.Hour)
}
