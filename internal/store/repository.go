// Package store is the Tier-3 durable store repository: subtitle records
// and extraction jobs persisted in Postgres, scoped to a configurable
// schema. All write paths that participate in invariants (job status
// transitions, upserts) run inside a transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Repository is the Tier-3 durable store over a Postgres schema.
type Repository struct {
	db     *sql.DB
	schema string
}

// New wraps db as a Repository scoped to schema. The caller owns db's
// lifecycle (pooling, Close).
func New(db *sql.DB, schema string) *Repository {
	return &Repository{db: db, schema: schema}
}

func (r *Repository) table(name string) string {
	return fmt.Sprintf("%q.%s", r.schema, name)
}

// FindSubtitle returns the SubtitleRecord for key, or ErrNotFound.
func (r *Repository) FindSubtitle(ctx context.Context, key VideoKey) (*SubtitleRecord, error) {
	query := fmt.Sprintf(`SELECT id, video_id, language, title, duration_seconds, segments,
		plain_text, extraction_method, extraction_duration_ms, extraction_status,
		extraction_error, proxy_used, checksum, auto_generated, retry_count, last_retry_at,
		created_at, updated_at, expires_at
		FROM %s WHERE video_id = $1 AND language = $2`, r.table("subtitle_records"))
	row := r.db.QueryRowContext(ctx, query, key.VideoID, key.Language)
	rec, err := scanSubtitle(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertSubtitle atomically creates or updates the subtitle record for
// key.VideoKey, setting expires_at = now() + 30 days.
func (r *Repository) UpsertSubtitle(ctx context.Context, key VideoKey, fields SubtitleRecord) (*SubtitleRecord, error) {
	segmentsJSON, err := json.Marshal(fields.Segments)
	if err != nil {
		return nil, fmt.Errorf("store: marshal segments: %w", err)
	}
	errStr := fields.ExtractionError
	if errStr != nil {
		trunc := truncateError(*errStr)
		errStr = &trunc
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(video_id, language, title, duration_seconds, segments, plain_text,
		 extraction_method, extraction_duration_ms, extraction_status, extraction_error,
		 proxy_used, checksum, auto_generated, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now(), now() + interval '30 days')
		ON CONFLICT (video_id, language) DO UPDATE SET
			title = EXCLUDED.title,
			duration_seconds = EXCLUDED.duration_seconds,
			segments = EXCLUDED.segments,
			plain_text = EXCLUDED.plain_text,
			extraction_method = EXCLUDED.extraction_method,
			extraction_duration_ms = EXCLUDED.extraction_duration_ms,
			extraction_status = EXCLUDED.extraction_status,
			extraction_error = EXCLUDED.extraction_error,
			proxy_used = EXCLUDED.proxy_used,
			checksum = EXCLUDED.checksum,
			auto_generated = EXCLUDED.auto_generated,
			updated_at = now(),
			expires_at = now() + interval '30 days'
		RETURNING id, video_id, language, title, duration_seconds, segments,
			plain_text, extraction_method, extraction_duration_ms, extraction_status,
			extraction_error, proxy_used, checksum, auto_generated, retry_count, last_retry_at,
			created_at, updated_at, expires_at`, r.table("subtitle_records"))

	row := r.db.QueryRowContext(ctx, query,
		key.VideoID, key.Language, fields.Title, fields.DurationSeconds, segmentsJSON,
		fields.PlainText, fields.ExtractionMethod, fields.ExtractionDurationMs,
		fields.ExtractionStatus, errStr, fields.ProxyUsed, fields.Checksum, fields.AutoGenerated)
	return scanSubtitle(row)
}

// MarkSubtitleFailed upserts a failed placeholder record so repeated
// failed extractions don't leave the (video, language) pair unrepresented.
func (r *Repository) MarkSubtitleFailed(ctx context.Context, key VideoKey, method ExtractionMethod, extractionErr string) error {
	trunc := truncateError(extractionErr)
	_, err := r.UpsertSubtitle(ctx, key, SubtitleRecord{
		ExtractionMethod: &method,
		ExtractionStatus: ExtractionFailed,
		ExtractionError:  &trunc,
		AutoGenerated:    true,
	})
	return err
}

// FindPendingJob returns the most recent non-terminal job for key, if any.
func (r *Repository) FindPendingJob(ctx context.Context, key VideoKey) (*ExtractionJob, error) {
	query := fmt.Sprintf(`SELECT id, video_id, language, job_id, job_status, result, error,
		webhook_url, webhook_delivered, webhook_delivery_status, webhook_delivery_error,
		created_at, started_at, completed_at, duration_seconds, attempt, max_attempts
		FROM %s
		WHERE video_id = $1 AND language = $2 AND job_status IN ('queued', 'processing')
		ORDER BY created_at DESC LIMIT 1`, r.table("extraction_jobs"))
	row := r.db.QueryRowContext(ctx, query, key.VideoID, key.Language)
	return scanJob(row)
}

// CreateJob inserts a new queued ExtractionJob row.
func (r *Repository) CreateJob(ctx context.Context, key VideoKey, queueJobID string, webhookURL *string) (*ExtractionJob, error) {
	query := fmt.Sprintf(`INSERT INTO %s
		(video_id, language, job_id, job_status, webhook_url, webhook_delivered, created_at, attempt, max_attempts)
		VALUES ($1, $2, $3, 'queued', $4, FALSE, now(), 0, 3)
		RETURNING id, video_id, language, job_id, job_status, result, error,
			webhook_url, webhook_delivered, webhook_delivery_status, webhook_delivery_error,
			created_at, started_at, completed_at, duration_seconds, attempt, max_attempts`, r.table("extraction_jobs"))
	row := r.db.QueryRowContext(ctx, query, key.VideoID, key.Language, queueJobID, webhookURL)
	return scanJob(row)
}

// GetJob returns the ExtractionJob identified by the queue-assigned job ID.
func (r *Repository) GetJob(ctx context.Context, queueJobID string) (*ExtractionJob, error) {
	query := fmt.Sprintf(`SELECT id, video_id, language, job_id, job_status, result, error,
		webhook_url, webhook_delivered, webhook_delivery_status, webhook_delivery_error,
		created_at, started_at, completed_at, duration_seconds, attempt, max_attempts
		FROM %s WHERE job_id = $1`, r.table("extraction_jobs"))
	row := r.db.QueryRowContext(ctx, query, queueJobID)
	return scanJob(row)
}

// UpdateJobStatus advances a job's status. Transitions are expected to be
// monotonic (callers of the job state machine never move backward).
// started_at is stamped on first entry to "processing"; completed_at and
// duration_seconds are stamped on entry to any terminal status.
func (r *Repository) UpdateJobStatus(ctx context.Context, queueJobID string, status JobStatus, result json.RawMessage, jobErr *string) error {
	truncated := jobErr
	if truncated != nil {
		t := truncateError(*truncated)
		truncated = &t
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	var startedAt sql.NullTime
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT created_at, started_at FROM %s WHERE job_id = $1 FOR UPDATE`, r.table("extraction_jobs")), queueJobID).Scan(&createdAt, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: lookup job for update: %w", err)
	}

	setStartedAt := status == JobProcessing && !startedAt.Valid
	isTerminal := status.IsTerminal()

	query := fmt.Sprintf(`UPDATE %s SET job_status = $1, result = COALESCE($2, result), error = COALESCE($3, error)`, r.table("extraction_jobs"))
	args := []any{status, nullableJSON(result), truncated}
	argN := 4
	if setStartedAt {
		query += fmt.Sprintf(`, started_at = now()`)
	}
	if isTerminal {
		query += fmt.Sprintf(`, completed_at = now(), duration_seconds = EXTRACT(EPOCH FROM (now() - $%d))`, argN)
		args = append(args, createdAt)
		argN++
	}
	query += fmt.Sprintf(` WHERE job_id = $%d`, argN)
	args = append(args, queueJobID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: update job status: %w", err)
	}
	return tx.Commit()
}

// UpdateWebhookDelivery records a webhook delivery outcome for a job.
func (r *Repository) UpdateWebhookDelivery(ctx context.Context, queueJobID string, delivered bool, status WebhookDeliveryStatus, deliveryErr *string) error {
	truncated := deliveryErr
	if truncated != nil {
		t := truncateError(*truncated)
		truncated = &t
	}
	query := fmt.Sprintf(`UPDATE %s SET webhook_delivered = $1, webhook_delivery_status = $2, webhook_delivery_error = $3 WHERE job_id = $4`, r.table("extraction_jobs"))
	_, err := r.db.ExecContext(ctx, query, delivered, status, truncated, queueJobID)
	if err != nil {
		return fmt.Errorf("store: update webhook delivery: %w", err)
	}
	return nil
}

// ListPendingWebhookJobs returns up to limit terminal jobs with an
// undelivered webhook, ordered by completion time ascending.
func (r *Repository) ListPendingWebhookJobs(ctx context.Context, limit int) ([]*ExtractionJob, error) {
	query := fmt.Sprintf(`SELECT id, video_id, language, job_id, job_status, result, error,
		webhook_url, webhook_delivered, webhook_delivery_status, webhook_delivery_error,
		created_at, started_at, completed_at, duration_seconds, attempt, max_attempts
		FROM %s
		WHERE webhook_url IS NOT NULL AND webhook_delivered = FALSE
		  AND job_status IN ('completed', 'failed', 'timeout', 'stale')
		ORDER BY completed_at ASC NULLS LAST LIMIT $1`, r.table("extraction_jobs"))
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list pending webhook jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ExtractionJob
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClearSubtitles bulk-deletes subtitle records. An empty videoID clears
// every record; otherwise only that video's records (across languages).
func (r *Repository) ClearSubtitles(ctx context.Context, videoID string) (int64, error) {
	var res sql.Result
	var err error
	if videoID == "" {
		res, err = r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table("subtitle_records")))
	} else {
		res, err = r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1`, r.table("subtitle_records")), videoID)
	}
	if err != nil {
		return 0, fmt.Errorf("store: clear subtitles: %w", err)
	}
	return res.RowsAffected()
}

// IncrementRetry bumps a subtitle record's retry counter, used by the
// worker's per-attempt retry loop to record how many internal retries an
// extraction needed.
func (r *Repository) IncrementRetry(ctx context.Context, key VideoKey) error {
	query := fmt.Sprintf(`UPDATE %s SET retry_count = retry_count + 1, last_retry_at = now()
		WHERE video_id = $1 AND language = $2`, r.table("subtitle_records"))
	_, err := r.db.ExecContext(ctx, query, key.VideoID, key.Language)
	return err
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubtitle(row rowScanner) (*SubtitleRecord, error) {
	var rec SubtitleRecord
	var id uuid.UUID
	var segmentsJSON []byte
	var method sql.NullString
	var status string

	err := row.Scan(&id, &rec.VideoID, &rec.Language, &rec.Title, &rec.DurationSeconds,
		&segmentsJSON, &rec.PlainText, &method, &rec.ExtractionDurationMs, &status,
		&rec.ExtractionError, &rec.ProxyUsed, &rec.Checksum, &rec.AutoGenerated,
		&rec.RetryCount, &rec.LastRetryAt, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan subtitle: %w", err)
	}

	rec.ID = id
	rec.ExtractionStatus = ExtractionStatus(status)
	if method.Valid {
		m := ExtractionMethod(method.String)
		rec.ExtractionMethod = &m
	}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &rec.Segments); err != nil {
			return nil, fmt.Errorf("store: unmarshal segments: %w", err)
		}
	}
	return &rec, nil
}

func scanJob(row rowScanner) (*ExtractionJob, error) {
	return scanJobGeneric(row)
}

func scanJobRows(rows *sql.Rows) (*ExtractionJob, error) {
	return scanJobGeneric(rows)
}

func scanJobGeneric(row rowScanner) (*ExtractionJob, error) {
	var job ExtractionJob
	var id uuid.UUID
	var status string
	var result []byte
	var webhookStatus sql.NullString

	err := row.Scan(&id, &job.VideoID, &job.Language, &job.JobID, &status, &result, &job.Error,
		&job.WebhookURL, &job.WebhookDelivered, &webhookStatus, &job.WebhookDeliveryError,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.DurationSeconds,
		&job.Attempt, &job.MaxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan job: %w", err)
	}

	job.ID = id
	job.Status = JobStatus(status)
	job.Result = result
	if webhookStatus.Valid {
		s := WebhookDeliveryStatus(webhookStatus.String)
		job.WebhookDeliveryStatus = &s
	}
	return &job, nil
}
