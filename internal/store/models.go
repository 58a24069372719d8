package store

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionStatus is the terminal/pending state of a SubtitleRecord's
// most recent extraction attempt.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionFailed  ExtractionStatus = "failed"
)

// ExtractionMethod identifies which engine produced a SubtitleRecord.
type ExtractionMethod string

const (
	MethodPrimary  ExtractionMethod = "primary"
	MethodFallback ExtractionMethod = "fallback"
)

// JobStatus is a position in the one-way ExtractionJob state machine:
// queued -> processing -> {completed, failed, timeout, stale}.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobTimeout    JobStatus = "timeout"
	JobStale      JobStatus = "stale"
)

// IsTerminal reports whether s is one of the job's terminal states.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobTimeout, JobStale:
		return true
	default:
		return false
	}
}

// WebhookDeliveryStatus tracks whether a completed job's webhook callback
// has been delivered.
type WebhookDeliveryStatus string

const (
	WebhookPending   WebhookDeliveryStatus = "pending"
	WebhookDelivered WebhookDeliveryStatus = "delivered"
	WebhookFailed    WebhookDeliveryStatus = "failed"
)

// Segment is a single timed span of transcript text.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// VideoKey identifies a cached/persisted artifact: a video and the
// language its transcript was requested in.
type VideoKey struct {
	VideoID  string
	Language string
}

// SubtitleRecord is the durable, upserted-by-(video_id,language) artifact
// produced by a successful or failed extraction.
type SubtitleRecord struct {
	ID                    uuid.UUID
	VideoID               string
	Language              string
	Title                 *string
	DurationSeconds       *int
	Segments              []Segment
	PlainText             string
	ExtractionMethod      *ExtractionMethod
	ExtractionDurationMs  *int
	ExtractionStatus      ExtractionStatus
	ExtractionError       *string
	ProxyUsed             *string
	Checksum              *string
	AutoGenerated         bool
	RetryCount            int
	LastRetryAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ExpiresAt             time.Time
}

// ExtractionJob is one attempt to extract a transcript for a VideoKey.
// At most one job per VideoKey may be in {queued, processing} at a time.
type ExtractionJob struct {
	ID                    uuid.UUID
	VideoID               string
	Language              string
	JobID                 string
	Status                JobStatus
	Result                []byte // raw JSON, decoded lazily by callers
	Error                 *string
	WebhookURL            *string
	WebhookDelivered      bool
	WebhookDeliveryStatus *WebhookDeliveryStatus
	WebhookDeliveryError  *string
	CreatedAt             time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
	DurationSeconds       *float64
	Attempt               int
	MaxAttempts           int
}

const maxErrorLength = 500

func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength]
}
