package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/lifecycle"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/telemetry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:              "dev",
		ObjectStoreType:  "local",
		LocalStoreDir:    t.TempDir(),
		AgentProvider:    "placeholder",
		AgentRPM:         6000,
		AgentBurst:       12,
		WorkerConcurrent: 4,
		SweepIntervalSec: 60,
		WebhookSecret:    "whsec",
		APIRatePerSec:    100,
		APIRateBurst:     100,
	}
}

func TestBuildInMemory(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if app.DB != nil || app.QueueMode != QueueModeInProcess || app.Async == nil {
		t.Fatalf("expected in-memory, in-process wiring: db=%v mode=%s", app.DB, app.QueueMode)
	}
	questions, err := app.QuestionsRepo.ListActive(context.Background())
	if err != nil || len(questions) < 120 {
		t.Fatalf("catalog not seeded: %d (%v)", len(questions), err)
	}
	pool, err := app.AgentsRepo.ListActive(context.Background())
	if err != nil || len(pool) == 0 {
		t.Fatalf("agents not seeded: %d (%v)", len(pool), err)
	}
}

func TestBuildLogsMemoryFallback(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(zap.NewNop()) })

	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	entries := logs.FilterMessage("bootstrap.memory_repos").All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("expected one memory_repos warning, got %+v", entries)
	}
	if entries[0].ContextMap()["reason"] != "DATABASE_URL empty" {
		t.Fatalf("unexpected fields: %+v", entries[0].ContextMap())
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail in production")
	}
}

func TestRouterHealthAndIdentity(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"database":"memory"`) {
		t.Fatalf("unexpected health: %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "analysis_jobs_dispatched_total") {
		t.Fatalf("unexpected metrics: %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(`{}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}

func TestInProcessAnalysisCompletes(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := payAndDrain(t, app)
	if got.Status != assessments.StatusCompleted || got.ImplementationKitPath == nil {
		t.Fatalf("expected completed with kit, got %s", got.Status)
	}
}

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestBuildResolvesQuorumDisplayNames(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = writePolicy(t, "quorum_domains: [Strategic Alignment, Financial Management, People & Culture]\n")
	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{assessments.DomainStrategicAlignment, assessments.DomainFinancialManagement, assessments.DomainPeopleCulture}
	if !reflect.DeepEqual(app.Policy.QuorumDomains, want) {
		t.Fatalf("quorum = %v, want %v", app.Policy.QuorumDomains, want)
	}

	got := payAndDrain(t, app)
	if got.Status != assessments.StatusCompleted || got.ExecutiveSummaryPath == nil || got.ImplementationKitPath == nil {
		t.Fatalf("expected completed with deliverables, got %s", got.Status)
	}
}

func TestBuildRejectsUnknownQuorumDomain(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = writePolicy(t, "quorum_domains: [strategic_alignment, revenue_engin]\n")
	_, err := Build(cfg)
	if err == nil || !strings.Contains(err.Error(), "revenue_engin") {
		t.Fatalf("expected unknown quorum domain error, got %v", err)
	}
}

// payAndDrain settles payment through the webhook and waits for every
// in-process job, returning the final assessment.
func payAndDrain(t *testing.T, app *App) assessments.Assessment {
	t.Helper()
	ctx := context.Background()

	a, err := app.Controller.Create(ctx, lifecycle.CreateInput{UserID: "user-1", Industry: "retail"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := app.AssessmentsRepo.Transition(ctx, a.ID, assessments.Transition{
		From: []string{assessments.StatusPending},
		To:   assessments.StatusAwaitingPayment,
		At:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment",
		strings.NewReader(`{"assessmentId":"`+a.ID+`","paymentRef":"pi_1","amountCents":49900,"currency":"usd","status":"settled"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "whsec")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := app.AssessmentsRepo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return got
}
