// Package worker runs the extraction job pipeline: claim a job off the
// queue, run the dual-engine extractor, persist the result, and fire the
// webhook notifier. Concurrency is a fixed goroutine pool, one per
// WORKER_CONCURRENCY slot, each blocking on its own BLPOP against the
// shared queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/7and1/subtitleapi/internal/cachekey"
	"github.com/7and1/subtitleapi/internal/extractor"
	"github.com/7and1/subtitleapi/internal/metrics"
	"github.com/7and1/subtitleapi/internal/orchestrator"
	"github.com/7and1/subtitleapi/internal/proxypool"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/retry"
	"github.com/7and1/subtitleapi/internal/store"
	"github.com/7and1/subtitleapi/internal/webhook"
	"github.com/7and1/subtitleapi/pkg/telemetry"
)

// Pool runs a fixed number of job-consuming goroutines.
type Pool struct {
	Concurrency int
	Queue       *queue.Queue
	Repo        *store.Repository
	Tier2       *rediscache.Cache
	ResultTTL   time.Duration
	Proxies     *proxypool.Pool
	Primary     extractor.Engine
	Fallback    extractor.Engine
	Notifier    *webhook.Notifier
	Timeout     time.Duration
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Log         *slog.Logger
}

// Run starts Concurrency worker goroutines and blocks until ctx is
// cancelled, at which point it waits for in-flight jobs to finish before
// returning.
func (p *Pool) Run(ctx context.Context) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			p.loop(ctx, workerID, log)
		}()
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int, log *slog.Logger) {
	log.Info("worker started", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping", "worker_id", workerID)
			return
		default:
		}

		job, ok, err := p.Queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			return
		}
		if !ok {
			continue
		}

		p.Queue.MarkStarted(ctx, job.JobID)
		if err := p.process(ctx, job, log); err != nil {
			log.Error("job processing failed", "job_id", job.JobID, "video_id", job.VideoID, "error", err)
			telemetry.CaptureError(err, map[string]string{
				"job_id":   job.JobID,
				"video_id": job.VideoID,
				"language": job.Language,
			})
		}
	}
}

// process runs one job end to end: mark processing, extract, persist,
// mark terminal, and deliver the webhook if configured.
func (p *Pool) process(ctx context.Context, job queue.Job, log *slog.Logger) error {
	key := store.VideoKey{VideoID: job.VideoID, Language: job.Language}

	if err := p.Repo.UpdateJobStatus(ctx, job.JobID, store.JobProcessing, nil, nil); err != nil {
		return fmt.Errorf("worker: mark processing: %w", err)
	}
	metrics.JobStatusTransitions.WithLabelValues(string(store.JobProcessing)).Inc()

	opts := extractor.Options{
		VideoID:    job.VideoID,
		Language:   job.Language,
		CleanForAI: job.CleanForAI,
		Timeout:    p.Timeout,
	}

	var extracted extractor.Extracted
	start := time.Now()
	err := retry.Do(ctx, p.MaxAttempts, p.Backoff, isTransient, func(attempt int) error {
		if attempt > 1 {
			_ = p.Repo.IncrementRetry(ctx, key)
		}
		var extractErr error
		extracted, extractErr = extractor.Extract(ctx, opts, p.Proxies, p.Primary, p.Fallback)
		return extractErr
	})
	duration := time.Since(start)

	if err != nil {
		metrics.ExtractionAttempts.WithLabelValues("unknown", "all").Inc()
		return p.finishFailed(ctx, job, key, err)
	}

	metrics.ExtractionSuccess.WithLabelValues(string(extracted.Method)).Inc()
	metrics.ExtractionDuration.WithLabelValues(string(extracted.Method)).Observe(duration.Seconds())

	return p.finishSuccess(ctx, job, key, extracted, duration)
}

func (p *Pool) finishSuccess(ctx context.Context, job queue.Job, key store.VideoKey, extracted extractor.Extracted, duration time.Duration) error {
	segments := make([]store.Segment, 0, len(extracted.Segments))
	for _, s := range extracted.Segments {
		segments = append(segments, store.Segment{Start: s.Start, Duration: s.Duration, Text: s.Text})
	}
	method := store.ExtractionMethod(extracted.Method)
	durationMs := int(duration.Milliseconds())
	var title *string
	if extracted.Title != "" {
		title = &extracted.Title
	}
	var proxyUsed *string
	if extracted.ProxyUsed != "" {
		proxyUsed = &extracted.ProxyUsed
	}

	rec, err := p.Repo.UpsertSubtitle(ctx, key, store.SubtitleRecord{
		Title:                title,
		Segments:             segments,
		PlainText:            extracted.PlainText,
		ExtractionMethod:     &method,
		ExtractionDurationMs: &durationMs,
		ExtractionStatus:     store.ExtractionSuccess,
		ProxyUsed:            proxyUsed,
	})
	if err != nil {
		return fmt.Errorf("worker: upsert subtitle: %w", err)
	}

	result, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("worker: marshal result: %w", err)
	}

	if p.Tier2 != nil {
		cached := orchestrator.Cached{
			VideoID:          key.VideoID,
			Language:         key.Language,
			Title:            title,
			Segments:         segments,
			PlainText:        extracted.PlainText,
			ExtractionMethod: &method,
			AutoGenerated:    rec.AutoGenerated,
		}
		if payload, err := json.Marshal(cached); err != nil {
			p.logger().Warn("worker: marshal tier-2 payload", "job_id", job.JobID, "error", err)
		} else {
			p.Tier2.Set(ctx, cachekey.Cache(key.VideoID, key.Language), string(payload), p.ResultTTL)
		}
	}

	if err := p.Repo.UpdateJobStatus(ctx, job.JobID, store.JobCompleted, result, nil); err != nil {
		return fmt.Errorf("worker: mark completed: %w", err)
	}
	metrics.JobStatusTransitions.WithLabelValues(string(store.JobCompleted)).Inc()

	p.Queue.MarkFinished(ctx, job.JobID, result, time.Now().Unix())
	p.Queue.MarkClaimed(ctx, job.JobID)

	p.deliverWebhook(ctx, job, true, result, "")
	return nil
}

func (p *Pool) finishFailed(ctx context.Context, job queue.Job, key store.VideoKey, extractErr error) error {
	errMsg := extractErr.Error()

	if err := p.Repo.MarkSubtitleFailed(ctx, key, store.MethodPrimary, errMsg); err != nil {
		return fmt.Errorf("worker: mark subtitle failed: %w", err)
	}
	if err := p.Repo.UpdateJobStatus(ctx, job.JobID, store.JobFailed, nil, &errMsg); err != nil {
		return fmt.Errorf("worker: mark job failed: %w", err)
	}
	metrics.JobStatusTransitions.WithLabelValues(string(store.JobFailed)).Inc()

	p.Queue.MarkFailed(ctx, job.JobID, errMsg, time.Now().Unix())
	p.Queue.MarkClaimed(ctx, job.JobID)

	p.deliverWebhook(ctx, job, false, nil, errMsg)
	return nil
}

// logger returns p.Log, falling back to slog.Default() if unset (Run
// applies the same fallback for its own goroutine-local logger but does
// not write it back onto p).
func (p *Pool) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func (p *Pool) deliverWebhook(ctx context.Context, job queue.Job, success bool, result json.RawMessage, errMsg string) {
	if job.WebhookURL == "" || p.Notifier == nil {
		return
	}

	deliverErr := p.Notifier.Deliver(ctx, job.WebhookURL, job.JobID, job.VideoID, success, result, errMsg, time.Now())

	status := store.WebhookDelivered
	var deliveryErrPtr *string
	outcome := "delivered"
	if deliverErr != nil {
		status = store.WebhookFailed
		msg := deliverErr.Error()
		deliveryErrPtr = &msg
		outcome = "failed"
	}
	metrics.WebhookDeliveries.WithLabelValues(outcome).Inc()

	if err := p.Repo.UpdateWebhookDelivery(ctx, job.JobID, deliverErr == nil, status, deliveryErrPtr); err != nil {
		telemetry.CaptureError(fmt.Errorf("worker: record webhook delivery: %w", err), map[string]string{
			"job_id":   job.JobID,
			"video_id": job.VideoID,
		})
	}
}

// isTransient decides whether a per-attempt extraction error is worth a
// further internal retry within the same job (as opposed to the
// extractor's own proxy-retry logic, which has already run by the time
// this predicate is consulted).
func isTransient(err error) bool {
	return err != nil
}
