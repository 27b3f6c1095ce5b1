package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog/seed"
	"assessment-backend/internal/shared/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock       *fakeClock
	jobs        *MemoryRepo
	assessments *assessments.MemoryRepo
	agents      *agents.MemoryRepo
	queue       *MemoryQueue
	scheduler   *Scheduler
	settled     []string
}

func newFixture(t *testing.T, status string) (*fixture, string) {
	t.Helper()
	pool, err := agents.Parse(seed.Default)
	if err != nil {
		t.Fatalf("parse agents: %v", err)
	}
	f := &fixture{
		clock:       newClock(),
		jobs:        NewMemoryRepo(),
		assessments: assessments.NewMemoryRepo(),
		agents:      agents.NewMemoryRepo(pool...),
		queue:       &MemoryQueue{},
	}
	f.scheduler = NewScheduler(f.jobs, f.agents, f.assessments, config.DefaultPolicy(), f.queue)
	f.scheduler.Now = f.clock.Now
	var mu sync.Mutex
	f.scheduler.OnSettled = func(_ context.Context, id string) {
		mu.Lock()
		defer mu.Unlock()
		f.settled = append(f.settled, id)
	}

	const id = "6f1f8c52-5d0e-4d43-9a4a-1b2c3d4e5f60"
	err = f.assessments.Create(context.Background(), assessments.Assessment{
		ID:             id,
		UserID:         "user-1",
		Industry:       "saas",
		Status:         status,
		TotalQuestions: 120,
		Currency:       "USD",
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	return f, id
}

func (f *fixture) outstanding(t *testing.T, assessmentID, domain string) Job {
	t.Helper()
	history, err := f.jobs.ListByAssessment(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("ListByAssessment: %v", err)
	}
	for _, j := range history {
		if j.Domain == domain && j.Outstanding() {
			return j
		}
	}
	t.Fatalf("no outstanding job for %s", domain)
	return Job{}
}

const validFinding = `{"score": 72, "summary": "Solid planning cadence.", "recommendations": ["Publish quarterly OKRs"]}`
