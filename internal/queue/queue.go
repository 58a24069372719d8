// Package queue is the Redis-backed job queue the orchestrator enqueues
// extraction work onto and the worker pool consumes from: RPUSH to enqueue,
// BLPOP to consume, matching the teacher's acquisition-queue pattern. A
// parallel status hash per job gives callers an RQ-style Fetch(jobID)
// lookup independent of the durable store.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey          = "subtitle:extraction_queue"
	presenceKeyPrefix = "subtitle:extraction_queue:present:"
	statusKeyPrefix   = "subtitle:extraction_queue:status:"
	presenceTTL       = time.Hour
	statusTTL         = 24 * time.Hour
)

// RQ-style job status vocabulary surfaced by Fetch. Only Queued, Started,
// Finished and Failed are ever written by this queue; Deferred and
// Scheduled are carried for vocabulary parity with the original RQ-backed
// service, which can report them for jobs with unmet dependencies or a
// future scheduled time, neither of which this queue implements.
const (
	StatusQueued    = "queued"
	StatusStarted   = "started"
	StatusDeferred  = "deferred"
	StatusScheduled = "scheduled"
	StatusFinished  = "finished"
	StatusFailed    = "failed"
)

// JobSnapshot is the queue's own view of a job's lifecycle, read back by
// Fetch. It is distinct from the durable store's ExtractionJob: the queue
// tracks RQ's transient queued/started/finished/failed vocabulary and
// expires after statusTTL, while the store keeps the permanent record.
type JobSnapshot struct {
	JobID      string          `json:"job_id"`
	Status     string          `json:"status"`
	EnqueuedAt int64           `json:"enqueued_at"`
	EndedAt    int64           `json:"ended_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	ExcInfo    string          `json:"exc_info,omitempty"`
}

// Job is one unit of extraction work handed from the orchestrator to a
// worker.
type Job struct {
	JobID      string `json:"job_id"`
	VideoID    string `json:"video_id"`
	Language   string `json:"language"`
	CleanForAI bool   `json:"clean_for_ai"`
	WebhookURL string `json:"webhook_url,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

// Queue wraps a *redis.Client as a single-list FIFO job queue.
type Queue struct {
	rdb *redis.Client
}

// New creates a Queue backed by rdb.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue generates a fresh job ID, pushes job onto the queue, and returns
// the assigned ID.
func (q *Queue) Enqueue(ctx context.Context, videoID, language string, cleanForAI bool, webhookURL string, enqueuedAt int64) (string, error) {
	jobID := uuid.New().String()
	job := Job{
		JobID:      jobID,
		VideoID:    videoID,
		Language:   language,
		CleanForAI: cleanForAI,
		WebhookURL: webhookURL,
		EnqueuedAt: enqueuedAt,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.rdb.RPush(ctx, queueKey, payload).Err(); err != nil {
		return "", fmt.Errorf("queue: rpush: %w", err)
	}
	if err := q.rdb.Set(ctx, presenceKeyPrefix+jobID, "1", presenceTTL).Err(); err != nil {
		return "", fmt.Errorf("queue: set presence: %w", err)
	}
	if err := q.rdb.HSet(ctx, statusKeyPrefix+jobID, map[string]any{
		"job_id":      jobID,
		"status":      StatusQueued,
		"enqueued_at": enqueuedAt,
	}).Err(); err != nil {
		return "", fmt.Errorf("queue: set status: %w", err)
	}
	q.rdb.Expire(ctx, statusKeyPrefix+jobID, statusTTL)
	return jobID, nil
}

// Exists reports whether the queue still knows about jobID: it was
// enqueued and has not yet reached a terminal status (via MarkClaimed) or
// expired. Used by the orchestrator to detect jobs the queue has silently
// dropped (e.g. after a Redis restart) so the durable record can be
// reconciled to "stale" instead of left pending forever. A job stays
// "known" for the whole queued-through-processing lifetime, not just while
// it sits in the list, so a worker actively extracting a video is never
// mistaken for one the queue lost.
func (q *Queue) Exists(ctx context.Context, jobID string) (bool, error) {
	n, err := q.rdb.Exists(ctx, presenceKeyPrefix+jobID).Result()
	if err != nil {
		return false, fmt.Errorf("queue: exists: %w", err)
	}
	return n > 0, nil
}

// MarkClaimed removes a job's presence marker once it has reached a
// terminal status (finished or failed) and been recorded as such in the
// durable store. Called from the worker's finishSuccess/finishFailed, not
// at dequeue time, so Exists stays true for the job's whole in-flight
// duration.
func (q *Queue) MarkClaimed(ctx context.Context, jobID string) {
	q.rdb.Del(ctx, presenceKeyPrefix+jobID)
}

// MarkStarted records that a worker has dequeued jobID and begun
// processing it.
func (q *Queue) MarkStarted(ctx context.Context, jobID string) {
	q.rdb.HSet(ctx, statusKeyPrefix+jobID, "status", StatusStarted)
}

// MarkFinished records a successful terminal status and the job's result.
func (q *Queue) MarkFinished(ctx context.Context, jobID string, result json.RawMessage, endedAt int64) {
	fields := map[string]any{"status": StatusFinished, "ended_at": endedAt}
	if len(result) > 0 {
		fields["result"] = string(result)
	}
	q.rdb.HSet(ctx, statusKeyPrefix+jobID, fields)
}

// MarkFailed records a failed terminal status and the extraction error.
func (q *Queue) MarkFailed(ctx context.Context, jobID, excInfo string, endedAt int64) {
	q.rdb.HSet(ctx, statusKeyPrefix+jobID, map[string]any{
		"status":   StatusFailed,
		"ended_at": endedAt,
		"exc_info": excInfo,
	})
}

// Fetch reads jobID's status snapshot, mirroring RQ's Job.fetch: it
// returns (nil, nil), not an error, when the queue no longer knows the
// job (never enqueued, or its status entry expired after statusTTL).
func (q *Queue) Fetch(ctx context.Context, jobID string) (*JobSnapshot, error) {
	vals, err := q.rdb.HGetAll(ctx, statusKeyPrefix+jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: fetch status: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	snap := &JobSnapshot{JobID: jobID, Status: vals["status"]}
	if v, ok := vals["enqueued_at"]; ok {
		snap.EnqueuedAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals["ended_at"]; ok {
		snap.EndedAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals["result"]; ok && v != "" {
		snap.Result = json.RawMessage(v)
	}
	if v, ok := vals["exc_info"]; ok {
		snap.ExcInfo = v
	}
	return snap, nil
}

// Dequeue blocks for up to blockFor waiting for a job, returning (job,
// true) if one arrived or (Job{}, false) on timeout. ctx cancellation
// propagates as an error so callers can distinguish shutdown from a
// normal timeout.
func (q *Queue) Dequeue(ctx context.Context, blockFor time.Duration) (Job, bool, error) {
	result, err := q.rdb.BLPop(ctx, blockFor, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Job{}, false, err
		}
		return Job{}, false, nil
	}
	if len(result) < 2 {
		return Job{}, false, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return job, true, nil
}

// Depth reports the current number of queued jobs awaiting a worker.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: llen: %w", err)
	}
	return n, nil
}
