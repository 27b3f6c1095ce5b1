package jobs

import (
	"context"
	"sync"

	"assessment-backend/internal/shared/requestid"
	"assessment-backend/internal/shared/telemetry"
)

// AsyncQueue runs jobs in-process on goroutines, at most limit at a time.
// It is the transport when no external queue is configured.
type AsyncQueue struct {
	run func(ctx context.Context, jobID string) error
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewAsyncQueue constructs an AsyncQueue over run.
func NewAsyncQueue(run func(ctx context.Context, jobID string) error, limit int) *AsyncQueue {
	if limit <= 0 {
		limit = 4
	}
	return &AsyncQueue{run: run, sem: make(chan struct{}, limit)}
}

// Enqueue never blocks; the job waits for a slot on its own goroutine.
func (q *AsyncQueue) Enqueue(ctx context.Context, job Job) error {
	runCtx := requestid.Detach(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.sem <- struct{}{}
		defer func() { <-q.sem }()
		if err := q.run(runCtx, job.ID); err != nil {
			telemetry.Error("worker.job.failed", map[string]any{
				"request_id":    requestid.From(runCtx),
				"assessment_id": job.AssessmentID,
				"job_id":        job.ID,
				"error":         err.Error(),
			})
		}
	}()
	return nil
}

// Wait blocks until every enqueued job has finished.
func (q *AsyncQueue) Wait() {
	q.wg.Wait()
}

// MemoryQueue records enqueued jobs for a caller to drain explicitly.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Job
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

// Drain returns and clears the pending jobs in enqueue order.
func (q *MemoryQueue) Drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

var (
	_ Enqueuer = (*AsyncQueue)(nil)
	_ Enqueuer = (*MemoryQueue)(nil)
)
