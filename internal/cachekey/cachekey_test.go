package cachekey

import "testing"

func TestIsValidVideoID(t *testing.T) {
	if !IsValidVideoID("dQw4w9WgXcQ") {
		t.Error("expected canonical 11-char id to be valid")
	}
	invalid := []string{"", "short", "waytoolongforavideoid", "has spaces!"}
	for _, id := range invalid {
		if IsValidVideoID(id) {
			t.Errorf("IsValidVideoID(%q) = true, want false", id)
		}
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=30s", "dQw4w9WgXcQ", true},
		{"not a url at all", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractVideoID(tc.url)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ExtractVideoID(%q) = (%q, %v), want (%q, %v)", tc.url, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCacheKeyShape(t *testing.T) {
	if got, want := Cache("dQw4w9WgXcQ", "en"), "youtube:subtitle:dQw4w9WgXcQ:en"; got != want {
		t.Errorf("Cache() = %q, want %q", got, want)
	}
}

func TestLockKeyWrapsCacheKey(t *testing.T) {
	ck := Cache("dQw4w9WgXcQ", "en")
	if got, want := Lock(ck), "lock:"+ck; got != want {
		t.Errorf("Lock() = %q, want %q", got, want)
	}
}

func TestRateKeyIsStableAndBounded(t *testing.T) {
	a := Rate("1.2.3.4", "/api/v1/subtitles")
	b := Rate("1.2.3.4", "/api/v1/subtitles")
	if a != b {
		t.Error("expected Rate() to be deterministic for the same inputs")
	}
	c := Rate("1.2.3.4", "/api/v1/admin/queue/stats")
	if a == c {
		t.Error("expected different endpoints to produce different rate keys")
	}
	if len(a) > 64 {
		t.Errorf("expected bounded key length, got %d chars", len(a))
	}
}

func TestProxyIDDeterministicAndDistinct(t *testing.T) {
	a := ProxyID("http://proxy-a.internal:8080")
	b := ProxyID("http://proxy-a.internal:8080")
	c := ProxyID("http://proxy-b.internal:8080")
	if a != b {
		t.Error("expected ProxyID to be deterministic for the same url")
	}
	if a == c {
		t.Error("expected distinct proxy urls to produce distinct ids")
	}
	if len(a) != 16 {
		t.Errorf("expected 16-char proxy id, got %d", len(a))
	}
}

func TestProxyFailureKeys(t *testing.T) {
	id := ProxyID("http://proxy-a.internal:8080")
	if got, want := ProxyFailuresKey(id), "proxy:fails:"+id; got != want {
		t.Errorf("ProxyFailuresKey() = %q, want %q", got, want)
	}
	if got, want := ProxyLastFailureKey(id), "proxy:last_failure:"+id; got != want {
		t.Errorf("ProxyLastFailureKey() = %q, want %q", got, want)
	}
}
