// Package webhook delivers signed job-completion callbacks, grounded on
// the Adapter/exponential-backoff shape of a POST-based webhook notifier
// in the wider example pack, with canonical-JSON HMAC signing matching the
// original service's payload and header semantics exactly.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	userAgent = "YouTube-Subtitle-API/1.0"

	baseBackoff = 1 * time.Second
	maxBackoff  = 10 * time.Second
)

// Payload is the JSON body POSTed to a job's webhook URL.
type Payload struct {
	Event     string          `json:"event"`
	JobID     string          `json:"job_id"`
	VideoID   string          `json:"video_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Config configures the Notifier.
type Config struct {
	Secret     string
	MaxRetries int
	Timeout    time.Duration
}

// Notifier delivers signed webhook callbacks with bounded exponential
// backoff retry.
type Notifier struct {
	cfg    Config
	client *http.Client
}

// New creates a Notifier. MaxRetries defaults to 3 and Timeout to 10s when
// left zero.
func New(cfg Config) *Notifier {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// ValidateURL rejects webhook URLs whose scheme is not http/https or whose
// host is empty.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webhook: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("webhook: url scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("webhook: url host is required")
	}
	return nil
}

// Deliver builds the payload for a completed/failed job and attempts
// delivery up to cfg.MaxRetries times with exponential backoff, returning
// nil only on a 2xx response. The returned error, if any, describes the
// last attempt's failure.
func (n *Notifier) Deliver(ctx context.Context, targetURL, jobID, videoID string, success bool, result json.RawMessage, jobErr string, now time.Time) error {
	if err := ValidateURL(targetURL); err != nil {
		return err
	}

	status := "failed"
	if success {
		status = "success"
	}
	payload := Payload{
		Event:     "job.completed",
		JobID:     jobID,
		VideoID:   videoID,
		Status:    status,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if success {
		payload.Result = result
	} else {
		payload.Error = jobErr
	}

	body, err := canonicalJSON(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 1 {
			backoff := computeBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = n.attempt(ctx, targetURL, body, payload.Timestamp)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook: delivery failed after %d attempts: %w", n.cfg.MaxRetries, lastErr)
}

// computeBackoff returns min(maxBackoff, baseBackoff * 2^(attempt-2)) for
// the sleep preceding attempt k (k = 2, 3, ...).
func computeBackoff(attempt int) time.Duration {
	shift := attempt - 2
	if shift < 0 {
		shift = 0
	}
	d := baseBackoff << uint(shift)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (n *Notifier) attempt(ctx context.Context, targetURL string, body []byte, timestamp string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Timestamp", timestamp)
	if n.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+sign(n.cfg.Secret, body, timestamp))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// sign computes HMAC-SHA256(secret, canonicalBody + "." + timestamp) as a
// lowercase hex string.
func sign(secret string, canonicalBody []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonicalBody)
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig (as received in X-Webhook-Signature, with or
// without the "sha256=" prefix) matches the expected HMAC for body and
// timestamp, using a constant-time comparison.
func Verify(secret string, body []byte, timestamp, sig string) bool {
	const prefix = "sha256="
	if len(sig) > len(prefix) && sig[:len(prefix)] == prefix {
		sig = sig[len(prefix):]
	}
	expected := sign(secret, body, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// canonicalJSON marshals v with sorted object keys and no extraneous
// whitespace, matching the signing input both sender and verifier compute.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
