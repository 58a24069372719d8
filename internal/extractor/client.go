package extractor

import (
	"net/http"
	"net/url"
	"time"
)

// newDirectClient returns a plain *http.Client with no outbound routing
// restrictions, used for primary/fallback attempts made without a proxy.
func newDirectClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// newProxyClient returns an *http.Client that routes all outbound requests
// through proxyURL.
func newProxyClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}, nil
}
