// Package orchestrator implements the read-through cache orchestrator:
// Tier-1 -> Tier-2 -> Tier-3 reads with a coalescing lock guarding the
// Tier-3 fallback, batch reads bounded to Tier-1/Tier-2, and single-flight
// asynchronous extraction enqueue with stale-job reconciliation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/7and1/subtitleapi/internal/cachekey"
	"github.com/7and1/subtitleapi/internal/memcache"
	"github.com/7and1/subtitleapi/internal/queue"
	"github.com/7and1/subtitleapi/internal/rediscache"
	"github.com/7and1/subtitleapi/internal/store"
)

// Tier identifies which layer satisfied a read.
type Tier string

const (
	TierMemory   Tier = "memory"
	TierRedis    Tier = "redis"
	TierPostgres Tier = "postgres"
)

const (
	lockTTL       = 30 * time.Second
	lockRetryWait = 100 * time.Millisecond
)

// Cached is a read-through result annotated with the tier that served it.
type Cached struct {
	VideoID          string                  `json:"video_id"`
	Language         string                  `json:"language"`
	Title            *string                 `json:"title,omitempty"`
	Segments         []store.Segment         `json:"segments"`
	PlainText        string                  `json:"plain_text"`
	ExtractionMethod *store.ExtractionMethod `json:"extraction_method,omitempty"`
	AutoGenerated    bool                    `json:"auto_generated"`
	Tier             Tier                    `json:"-"`
}

// Orchestrator wires the three cache tiers, the durable repository, and the
// job queue together behind GetCached/GetCachedBatch/EnqueueExtraction.
type Orchestrator struct {
	tier1       *memcache.Cache
	tier2       *rediscache.Cache
	repo        *store.Repository
	q           *queue.Queue
	resultTTL   time.Duration
	log         *slog.Logger
}

// New builds an Orchestrator. resultTTL is the Tier-2 TTL applied to
// results freshly promoted from Tier-3 (REDIS_RESULT_TTL).
func New(tier1 *memcache.Cache, tier2 *rediscache.Cache, repo *store.Repository, q *queue.Queue, resultTTL time.Duration, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{tier1: tier1, tier2: tier2, repo: repo, q: q, resultTTL: resultTTL, log: log}
}

// GetCached performs the full read-through sequence for a single
// (videoID, language) pair.
func (o *Orchestrator) GetCached(ctx context.Context, videoID, language string) (*Cached, bool, error) {
	ck := cachekey.Cache(videoID, language)

	if raw, ok := o.tier1.Get(ck); ok {
		c, err := decode(raw, TierMemory)
		return c, err == nil, err
	}

	if raw, ok := o.tier2.Get(ctx, ck); ok {
		o.tier1.Set(ck, raw)
		c, err := decode(raw, TierRedis)
		return c, err == nil, err
	}

	lockKey := cachekey.Lock(ck)
	if o.tier2.AcquireLock(ctx, lockKey, lockTTL) {
		defer o.tier2.ReleaseLock(ctx, lockKey)

		if raw, ok := o.tier2.Get(ctx, ck); ok {
			o.tier1.Set(ck, raw)
			c, err := decode(raw, TierRedis)
			return c, err == nil, err
		}

		rec, err := o.repo.FindSubtitle(ctx, store.VideoKey{VideoID: videoID, Language: language})
		if err != nil {
			if err == store.ErrNotFound {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("orchestrator: tier-3 lookup: %w", err)
		}
		if rec.ExtractionStatus != store.ExtractionSuccess {
			return nil, false, nil
		}

		cached := toCached(rec, TierPostgres)
		payload, err := json.Marshal(cached)
		if err != nil {
			return nil, false, fmt.Errorf("orchestrator: marshal cached record: %w", err)
		}
		o.tier2.Set(ctx, ck, string(payload), o.resultTTL)
		o.tier1.Set(ck, string(payload))
		return cached, true, nil
	}

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-time.After(lockRetryWait):
	}
	if raw, ok := o.tier2.Get(ctx, ck); ok {
		c, err := decode(raw, TierRedis)
		return c, err == nil, err
	}
	return nil, false, nil
}

// GetCachedBatch resolves multiple videoIDs for a single language via
// Tier-1 then Tier-2 only; entries not found in either are simply absent
// from the returned map (no Tier-3 fallback, to keep batch latency
// bounded).
func (o *Orchestrator) GetCachedBatch(ctx context.Context, videoIDs []string, language string) map[string]*Cached {
	out := make(map[string]*Cached, len(videoIDs))
	keyToVideo := make(map[string]string, len(videoIDs))
	keys := make([]string, 0, len(videoIDs))
	for _, id := range videoIDs {
		ck := cachekey.Cache(id, language)
		keyToVideo[ck] = id
		keys = append(keys, ck)
	}

	hits := o.tier1.GetMany(keys)
	var remaining []string
	for _, ck := range keys {
		if raw, ok := hits[ck]; ok {
			if c, err := decode(raw, TierMemory); err == nil {
				out[keyToVideo[ck]] = c
				continue
			}
		}
		remaining = append(remaining, ck)
	}
	if len(remaining) == 0 {
		return out
	}

	redisHits := o.tier2.GetMany(ctx, remaining)
	for ck, raw := range redisHits {
		if c, err := decode(raw, TierRedis); err == nil {
			out[keyToVideo[ck]] = c
			o.tier1.Set(ck, raw)
		}
	}
	return out
}

// EnqueueExtraction performs the single-flight enqueue sequence: dedup
// against an already-pending job when the queue still knows about it,
// reconcile a queue-lost job to "stale", and otherwise enqueue fresh work
// and create the durable job record.
func (o *Orchestrator) EnqueueExtraction(ctx context.Context, videoID, language string, cleanForAI bool, webhookURL string) (string, error) {
	key := store.VideoKey{VideoID: videoID, Language: language}

	existing, err := o.repo.FindPendingJob(ctx, key)
	if err != nil && err != store.ErrNotFound {
		return "", fmt.Errorf("orchestrator: find pending job: %w", err)
	}
	if existing != nil {
		known, err := o.q.Exists(ctx, existing.JobID)
		if err != nil {
			o.log.Warn("orchestrator: queue existence check failed", "job_id", existing.JobID, "error", err)
		} else if known {
			return existing.JobID, nil
		}
		reason := "queue_job_missing"
		if uerr := o.repo.UpdateJobStatus(ctx, existing.JobID, store.JobStale, nil, &reason); uerr != nil {
			o.log.Warn("orchestrator: failed to mark job stale", "job_id", existing.JobID, "error", uerr)
		}
	}

	var webhookPtr *string
	if webhookURL != "" {
		webhookPtr = &webhookURL
	}

	jobID, err := o.q.Enqueue(ctx, videoID, language, cleanForAI, webhookURL, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("orchestrator: enqueue: %w", err)
	}
	if _, err := o.repo.CreateJob(ctx, key, jobID, webhookPtr); err != nil {
		return "", fmt.Errorf("orchestrator: create job record: %w", err)
	}
	return jobID, nil
}

func toCached(rec *store.SubtitleRecord, tier Tier) *Cached {
	return &Cached{
		VideoID:          rec.VideoID,
		Language:         rec.Language,
		Title:            rec.Title,
		Segments:         rec.Segments,
		PlainText:        rec.PlainText,
		ExtractionMethod: rec.ExtractionMethod,
		AutoGenerated:    rec.AutoGenerated,
		Tier:             tier,
	}
}

func decode(raw string, tier Tier) (*Cached, error) {
	var c Cached
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("orchestrator: decode cached payload: %w", err)
	}
	c.Tier = tier
	return &c, nil
}
