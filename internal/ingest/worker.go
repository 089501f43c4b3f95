package ingest

import (
	"context"
	"encoding/json"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/papyr-app/papyr-api/library/db/redis"
	"github.com/papyr-app/papyr-api/library/log"
)

const (
	dequeueTimeout = 5 * time.Second

	// total deliveries per job before the envelope is dead-lettered
	maxProcessAttempts = 3
)

// Worker consumes document processing jobs from the durable queue.
type Worker struct {
	svc    *Service
	logger logSDK.Logger
}

// StartWorkers starts the configured number of processing workers. Jobs for
// different documents run fully in parallel; each job's internal pipeline
// stays sequential.
func (s *Service) StartWorkers(ctx context.Context) error {
	if s == nil {
		return errors.New("ingest service is nil")
	}
	for i := 0; i < s.settings.Workers; i++ {
		worker := s.NewWorker()
		go func() {
			if err := worker.Start(ctx); err != nil {
				worker.logger.Warn("ingest worker stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// NewWorker constructs a new worker instance.
func (s *Service) NewWorker() *Worker {
	logger := s.logger
	if logger == nil {
		logger = log.Logger.Named("ingest_worker")
	}
	return &Worker{svc: s, logger: logger.Named("worker")}
}

// Start runs the worker loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w == nil || w.svc == nil {
		return errors.New("worker is not configured")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.RunOnce(ctx); err != nil {
			w.logger.Warn("ingest worker run failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// RunOnce waits for one task envelope and handles it. A nil envelope means
// the queue stayed empty for the blocking window.
func (w *Worker) RunOnce(ctx context.Context) error {
	envelope, err := w.svc.queue.Dequeue(ctx, redis.KeyTaskIngest, dequeueTimeout)
	if err != nil {
		return errors.Wrap(err, "dequeue task")
	}
	if envelope == nil {
		return nil
	}

	return w.Handle(ctx, envelope)
}

// Handle validates the envelope and dispatches by job name. Malformed or
// unknown payloads go to the dead-letter list instead of being retried.
func (w *Worker) Handle(ctx context.Context, envelope *redis.TaskEnvelope) error {
	switch envelope.JobName {
	case JobProcessDocument:
		task := new(ProcessDocumentTask)
		if err := json.Unmarshal(envelope.Payload, task); err != nil {
			w.logger.Warn("malformed task payload, dead-lettering",
				zap.String("job_name", envelope.JobName), zap.Error(err))
			return w.deadLetter(ctx, envelope)
		}
		if err := task.Validate(); err != nil {
			w.logger.Warn("invalid task payload, dead-lettering",
				zap.String("job_name", envelope.JobName), zap.Error(err))
			return w.deadLetter(ctx, envelope)
		}

		if err := w.svc.Process(ctx, *task); err != nil {
			return w.retryOrDeadLetter(ctx, envelope, task.JobID, err)
		}
		w.logger.Info("processing job finished", zap.String("job_id", task.JobID))
		return nil

	default:
		w.logger.Warn("unknown job name, dead-lettering",
			zap.String("job_name", envelope.JobName))
		return w.deadLetter(ctx, envelope)
	}
}

// retryOrDeadLetter puts a failed job back on the queue. BLPop already
// consumed the envelope, so dropping it here would silently lose the job;
// after maxProcessAttempts deliveries it goes to the dead-letter list
// instead of cycling forever.
func (w *Worker) retryOrDeadLetter(ctx context.Context,
	envelope *redis.TaskEnvelope, jobID string, cause error,
) error {
	envelope.Attempts++
	if envelope.Attempts >= maxProcessAttempts {
		w.logger.Error("processing job exhausted retries, dead-lettering",
			zap.String("job_id", jobID),
			zap.Int("attempts", envelope.Attempts),
			zap.Error(cause))
		return w.deadLetter(ctx, envelope)
	}

	w.logger.Warn("processing job failed, requeueing",
		zap.String("job_id", jobID),
		zap.Int("attempts", envelope.Attempts),
		zap.Error(cause))
	if err := w.svc.queue.Requeue(ctx, redis.KeyTaskIngest, envelope); err != nil {
		return errors.Wrapf(err, "requeue job %q", jobID)
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, envelope *redis.TaskEnvelope) error {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "marshal dead envelope")
	}
	if err := w.svc.queue.DeadLetter(ctx, redis.KeyTaskIngestDead, raw); err != nil {
		return errors.Wrap(err, "dead letter envelope")
	}
	return nil
}
