package ingest

import (
	"context"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"

	"github.com/papyr-app/papyr-api/library/db/redis"
)

// JobProcessDocument is the queue job name for the asynchronous processing leg.
const JobProcessDocument = "process_document"

// QueueClient is the durable work queue capability the pipeline consumes.
type QueueClient interface {
	Enqueue(ctx context.Context, key, jobName string, payload any) error
	Dequeue(ctx context.Context, key string, timeout time.Duration) (*redis.TaskEnvelope, error)
	Requeue(ctx context.Context, key string, envelope *redis.TaskEnvelope) error
	DeadLetter(ctx context.Context, key string, raw []byte) error
}

// ProcessDocumentTask is the closed payload shape for JobProcessDocument.
// The queue carries the storage reference, never the file bytes, so upload
// latency stays bounded by the blob write alone.
type ProcessDocumentTask struct {
	JobID       string `json:"job_id"`
	ProfileID   string `json:"profile_id"`
	BookID      string `json:"book_id,omitempty"`
	Title       string `json:"title"`
	StoragePath string `json:"storage_path"`
}

// Validate rejects payloads missing required routing fields. Malformed
// payloads are dead-lettered by the worker rather than trusted.
func (t *ProcessDocumentTask) Validate() error {
	if t == nil {
		return errors.New("task is nil")
	}
	if strings.TrimSpace(t.JobID) == "" {
		return errors.New("job id cannot be empty")
	}
	if strings.TrimSpace(t.ProfileID) == "" {
		return errors.New("profile id cannot be empty")
	}
	if strings.TrimSpace(t.StoragePath) == "" {
		return errors.New("storage path cannot be empty")
	}
	return nil
}
