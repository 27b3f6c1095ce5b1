package main

// Run one assessment end to end in memory and write its deliverables:
//   go run ./cmd/renderdemo -out ./tmp/demo -industry saas

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/lifecycle"
	"assessment-backend/internal/shared/config"
)

func main() {
	outDir := flag.String("out", "./tmp/renderdemo", "Directory for the local object store")
	industry := flag.String("industry", "", "Industry profile")
	seed := flag.Int64("seed", 7, "Seed for generated answer scores")
	flag.Parse()

	cfg := config.Config{
		Env:              "dev",
		ObjectStoreType:  "local",
		LocalStoreDir:    *outDir,
		AgentProvider:    "placeholder",
		AgentRPM:         6000,
		AgentBurst:       12,
		WorkerConcurrent: 4,
		APIRatePerSec:    100,
		APIRateBurst:     100,
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	ctx := context.Background()

	a, err := app.Controller.Create(ctx, lifecycle.CreateInput{UserID: "renderdemo", Industry: *industry})
	if err != nil {
		exitErr(err.Error())
	}
	core, err := app.Bank.CoreQuestions(ctx, a.Industry)
	if err != nil {
		exitErr(err.Error())
	}
	rng := rand.New(rand.NewSource(*seed))
	options := []float64{0, 25, 50, 75, 100}
	for _, q := range core {
		s := options[rng.Intn(len(options))]
		if a, _, err = app.Controller.RecordResponse(ctx, a.ID, lifecycle.ResponseInput{QuestionID: q.ID, Score: &s}); err != nil {
			exitErr(fmt.Sprintf("answer %s: %v", q.ID, err))
		}
	}
	if a.Status != assessments.StatusAwaitingPayment {
		exitErr(fmt.Sprintf("expected awaiting_payment after %d answers, got %s", len(core), a.Status))
	}

	if _, err := app.Controller.ConfirmPayment(ctx, a.ID, lifecycle.Payment{Reference: "demo", AmountCents: 0, Currency: "USD"}); err != nil {
		exitErr(err.Error())
	}
	if err := app.Close(); err != nil {
		exitErr(err.Error())
	}

	a, err = app.Controller.Get(ctx, a.ID)
	if err != nil {
		exitErr(err.Error())
	}
	fmt.Printf("assessment %s: %s\n", a.ID, a.Status)
	for _, tier := range []string{assessments.ArtifactExecutiveSummary, assessments.ArtifactDetailedAnalysis, assessments.ArtifactImplementationKit} {
		if p := a.ArtifactPath(tier); p != nil {
			fmt.Printf("  %-20s %s\n", tier, filepath.Join(*outDir, filepath.FromSlash(*p)))
		}
	}
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
