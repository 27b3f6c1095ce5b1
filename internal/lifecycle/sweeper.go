package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/jobs"
	"assessment-backend/internal/shared/telemetry"
)

// Sweeper is the periodic SLA tick: it times out stuck jobs, retries failed
// dispatches and reconciles every assessment in analysis.
type Sweeper struct {
	Controller  *Controller
	Scheduler   *jobs.Scheduler
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// TickReport summarizes one sweep.
type TickReport struct {
	TimedOut   int
	Requeued   int
	Started    int
	Reconciled int
	Errors     int
}

// Tick runs one sweep. Per-assessment failures are logged and counted; only
// failures of the sweep queries themselves are returned.
func (s *Sweeper) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	timedOut, requeued, err := s.Scheduler.SweepTimeouts(ctx, s.batch())
	report.TimedOut, report.Requeued = timedOut, requeued
	if err != nil {
		return report, err
	}

	paid, err := s.Controller.Assessments.ListByStatus(ctx, assessments.StatusPaid, s.batch())
	if err != nil {
		return report, err
	}
	var started, reconciled, failures atomic.Int64
	s.each(ctx, paid, &failures, "sweep.begin_analysis_failed", func(ctx context.Context, a assessments.Assessment) error {
		if _, err := s.Controller.BeginAnalysis(ctx, a.ID); err != nil {
			return err
		}
		started.Add(1)
		return nil
	})

	active, err := s.Controller.Assessments.ListByStatus(ctx, assessments.StatusAnalysis, s.batch())
	if err != nil {
		return report, err
	}
	s.each(ctx, active, &failures, "sweep.reconcile_failed", func(ctx context.Context, a assessments.Assessment) error {
		if _, err := s.Scheduler.Repair(ctx, a.ID); err != nil {
			return err
		}
		if _, err := s.Controller.Reconcile(ctx, a.ID); err != nil {
			return err
		}
		reconciled.Add(1)
		return nil
	})

	report.Started = int(started.Load())
	report.Reconciled = int(reconciled.Load())
	report.Errors = int(failures.Load())
	if report.TimedOut+report.Requeued+report.Started+report.Errors > 0 {
		telemetry.Info("sweep.tick", map[string]any{
			"timed_out":  report.TimedOut,
			"requeued":   report.Requeued,
			"started":    report.Started,
			"reconciled": report.Reconciled,
			"errors":     report.Errors,
		})
	}
	return report, nil
}

func (s *Sweeper) each(ctx context.Context, list []assessments.Assessment, failures *atomic.Int64, event string, fn func(context.Context, assessments.Assessment) error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for _, a := range list {
		g.Go(func() error {
			if err := fn(gctx, a); err != nil {
				failures.Add(1)
				telemetry.Error(event, map[string]any{
					"assessment_id": a.ID,
					"error":         err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Run ticks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("sweep.tick_failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) batch() int {
	if s.BatchSize <= 0 {
		return 500
	}
	return s.BatchSize
}

func (s *Sweeper) concurrency() int {
	if s.Concurrency <= 0 {
		return 4
	}
	return s.Concurrency
}
