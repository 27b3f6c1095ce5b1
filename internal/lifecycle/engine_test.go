package lifecycle

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/catalog/seed"
	"assessment-backend/internal/deliverables"
	"assessment-backend/internal/documents"
	"assessment-backend/internal/jobs"
	"assessment-backend/internal/responses"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/storage/object/local"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

// countingStore records artifact writes per tier.
type countingStore struct {
	*local.Store
	mu    sync.Mutex
	saves map[string]int
}

func (s *countingStore) SaveWithKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	s.mu.Lock()
	for _, tier := range deliverables.Tiers {
		if strings.Contains(key, "/"+tier+"/") {
			s.saves[tier]++
		}
	}
	s.mu.Unlock()
	return s.Store.SaveWithKey(ctx, key, contentType, r)
}

func (s *countingStore) count(tier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[tier]
}

type engine struct {
	clock        *fakeClock
	assessments  *assessments.MemoryRepo
	responses    *responses.MemoryRepo
	jobs         *jobs.MemoryRepo
	deliverables *deliverables.MemoryRepo
	store        *countingStore
	queue        *jobs.MemoryQueue
	scheduler    *jobs.Scheduler
	controller   *Controller
	runner       *jobs.Runner
	sweeper      *Sweeper
	questions    []catalog.Question

	mu      sync.Mutex
	failing map[string]bool
	invoked int
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	questions, err := catalog.Parse(seed.Default)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	pool, err := agents.Parse(seed.Default)
	if err != nil {
		t.Fatalf("parse agents: %v", err)
	}
	policy := config.DefaultPolicy()
	e := &engine{
		clock:        &fakeClock{now: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)},
		assessments:  assessments.NewMemoryRepo(),
		responses:    responses.NewMemoryRepo(),
		jobs:         jobs.NewMemoryRepo(),
		deliverables: deliverables.NewMemoryRepo(),
		store:        &countingStore{Store: local.New(t.TempDir()), saves: map[string]int{}},
		queue:        &jobs.MemoryQueue{},
		questions:    questions,
		failing:      map[string]bool{},
	}
	bank := catalog.NewBank(catalog.NewMemoryRepo(questions...))

	e.scheduler = jobs.NewScheduler(e.jobs, agents.NewMemoryRepo(pool...), e.assessments, policy, e.queue)
	e.scheduler.Now = e.clock.Now
	agg := deliverables.NewAggregator(e.assessments, e.deliverables, e.scheduler, e.store, policy)
	agg.Now = e.clock.Now
	e.controller = NewController(e.assessments, e.responses, bank, e.scheduler, agg, policy)
	e.controller.Now = e.clock.Now
	e.runner = &jobs.Runner{
		Scheduler: e.scheduler,
		Context: &jobs.ContextBuilder{
			Responses:    e.responses,
			Bank:         bank,
			Documents:    documents.NewMemoryRepo(),
			Store:        e.store,
			ExcerptChars: policy.ExcerptChars,
		},
		Capability: agents.CapabilityFunc(e.invoke),
	}
	e.sweeper = &Sweeper{Controller: e.controller, Scheduler: e.scheduler, Concurrency: 2}
	return e
}

func (e *engine) invoke(ctx context.Context, inv agents.Invocation) (agents.Result, error) {
	e.mu.Lock()
	e.invoked++
	fail := e.failing[inv.Domain]
	e.mu.Unlock()
	if fail {
		return agents.Result{}, fmt.Errorf("%w: upstream unavailable", agents.ErrTimeout)
	}
	body := fmt.Sprintf(`{"score": 64, "summary": "%s is stable.", "recommendations": ["Tighten %s reviews"]}`, inv.Context.DomainName, inv.Domain)
	return agents.Result{Response: body, TokensUsed: 500}, nil
}

func (e *engine) failDomain(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failing[domain] = true
}

// drain runs queued jobs, including retries they spawn, until none remain.
func (e *engine) drain(t *testing.T) {
	t.Helper()
	for round := 0; round < 10; round++ {
		pending := e.queue.Drain()
		if len(pending) == 0 {
			return
		}
		for _, j := range pending {
			if err := e.runner.Run(context.Background(), j.ID); err != nil {
				t.Fatalf("Run %s: %v", j.ID, err)
			}
		}
	}
	t.Fatalf("queue did not drain")
}

// awaitingPayment creates an assessment and walks it to awaiting_payment.
func (e *engine) awaitingPayment(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	a, err := e.controller.Create(ctx, CreateInput{UserID: "user-1", Industry: "saas"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = e.assessments.Transition(ctx, a.ID, assessments.Transition{
		From: []string{assessments.StatusPending},
		To:   assessments.StatusAwaitingPayment,
		At:   e.clock.Now(),
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	return a.ID
}

func (e *engine) pay(t *testing.T, id string) assessments.Assessment {
	t.Helper()
	a, err := e.controller.ConfirmPayment(context.Background(), id, Payment{Reference: "pi_" + id[:8], AmountCents: 49900, Currency: "usd"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	return a
}

func (e *engine) tick(t *testing.T) TickReport {
	t.Helper()
	report, err := e.sweeper.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return report
}

func (e *engine) get(t *testing.T, id string) assessments.Assessment {
	t.Helper()
	a, err := e.assessments.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return a
}

func (e *engine) jobCount(t *testing.T, id, domain string) int {
	t.Helper()
	history, err := e.jobs.ListByAssessment(context.Background(), id)
	if err != nil {
		t.Fatalf("ListByAssessment: %v", err)
	}
	n := 0
	for _, j := range history {
		if domain == "" || j.Domain == domain {
			n++
		}
	}
	return n
}
