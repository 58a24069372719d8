// fixtures.go — Test data seed helpers.
// Provides canonical test fixtures for subtitle records and extraction jobs.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// SeedSubtitleRecord inserts a completed subtitle record for videoID in the
// given Schema and returns its row ID.
func SeedSubtitleRecord(t *testing.T, db *sql.DB, videoID, language string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.QueryRow(fmt.Sprintf(`
		INSERT INTO %q.subtitle_records
			(video_id, language, title, segments, plain_text, extraction_method, extraction_status, auto_generated, expires_at)
		VALUES ($1, $2, $3, '[{"start":0,"duration":2.5,"text":"hello"}]', 'hello', 'primary', 'success', TRUE, now() + interval '24 hours')
		ON CONFLICT (video_id, language) DO UPDATE SET updated_at = now()
		RETURNING id
	`, Schema), videoID, language, "Test Video "+videoID).Scan(&id)
	if err != nil {
		t.Fatalf("seed subtitle record: %v", err)
	}
	return id
}

// SeedExtractionJob inserts a queued extraction job for videoID and returns
// its job ID string.
func SeedExtractionJob(t *testing.T, db *sql.DB, videoID, language string) string {
	t.Helper()
	jobID := fmt.Sprintf("test-job-%d", time.Now().UnixNano())
	_, err := db.Exec(fmt.Sprintf(`
		INSERT INTO %q.extraction_jobs (video_id, language, job_id, job_status, max_attempts)
		VALUES ($1, $2, $3, 'queued', 3)
	`, Schema), videoID, language, jobID)
	if err != nil {
		t.Fatalf("seed extraction job: %v", err)
	}
	return jobID
}

// CleanupVideoKey removes every subtitle record and extraction job for the
// given (video_id, language) pair.
func CleanupVideoKey(db *sql.DB, videoID, language string) {
	_, _ = db.Exec(fmt.Sprintf(`DELETE FROM %q.subtitle_records WHERE video_id = $1 AND language = $2`, Schema), videoID, language)
	_, _ = db.Exec(fmt.Sprintf(`DELETE FROM %q.extraction_jobs WHERE video_id = $1 AND language = $2`, Schema), videoID, language)
}
