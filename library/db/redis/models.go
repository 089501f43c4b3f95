package redis

import (
	"encoding/json"
	"time"
)

// TaskEnvelope wraps a queued job payload with routing metadata.
// Payload stays opaque here; each consumer decodes and validates its own
// closed payload type at dequeue time. Attempts counts failed deliveries so
// consumers can bound their retries before dead-lettering.
type TaskEnvelope struct {
	JobName    string          `json:"job_name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}
