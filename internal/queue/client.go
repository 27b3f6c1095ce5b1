package queue

import (
	"context"
	"time"

	"assessment-backend/internal/jobs"
	"assessment-backend/internal/shared/requestid"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Publisher adapts a Client to the scheduler's enqueue hook.
type Publisher struct {
	Client Client
	Now    func() time.Time
}

// Enqueue publishes one message per queued job.
func (p *Publisher) Enqueue(ctx context.Context, job jobs.Job) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return p.Client.Send(ctx, NewMessage(job, requestid.From(ctx), now()))
}

var _ jobs.Enqueuer = (*Publisher)(nil)
