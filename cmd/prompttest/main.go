package main

// Preview the agent prompt for one domain and optionally run it:
//   go run ./cmd/prompttest -domain revenue_engine -score 40
//   AGENT_PROVIDER=openai go run ./cmd/prompttest -domain supply_chain -doc plan.pdf -invoke

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assessment-backend/internal/agents"
	openai "assessment-backend/internal/agents/openai"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	domain := flag.String("domain", assessments.DomainStrategicAlignment, "Domain slug")
	industry := flag.String("industry", "", "Industry profile")
	score := flag.Float64("score", 50, "Score recorded for every core answer")
	docPath := flag.String("doc", "", "Supporting document to excerpt (pdf, docx or text)")
	invoke := flag.Bool("invoke", false, "Send the prompt to the configured agent provider")
	outPath := flag.String("out", "", "Path to write the raw agent response (optional)")
	flag.Parse()

	slug, ok := assessments.NormalizeDomain(*domain)
	if !ok {
		exitErr(fmt.Sprintf("unknown domain %q", *domain))
	}

	ctx := context.Background()
	data, err := bootstrap.CatalogData(cfg.CatalogFile)
	if err != nil {
		exitErr(err.Error())
	}
	questions, err := catalog.Parse(data)
	if err != nil {
		exitErr(fmt.Sprintf("parse catalog: %v", err))
	}
	pool, err := agents.Parse(data)
	if err != nil {
		exitErr(fmt.Sprintf("parse agents: %v", err))
	}
	agent, err := agents.Select(pool, slug)
	if err != nil {
		exitErr(err.Error())
	}

	bank := catalog.NewBank(catalog.NewMemoryRepo(questions...))
	domainQuestions, err := bank.QuestionsFor(ctx, *industry, slug, nil)
	if err != nil {
		exitErr(err.Error())
	}
	actx := agents.AssessmentContext{
		AssessmentID: "prompttest",
		Industry:     *industry,
		Domain:       slug,
		DomainName:   assessments.DisplayName(slug),
		Documents:    []agents.ContextDocument{},
	}
	for _, q := range domainQuestions {
		s := *score
		actx.Answers = append(actx.Answers, agents.ContextAnswer{
			QuestionID: q.ID,
			Question:   q.Text,
			Type:       q.Type,
			Score:      &s,
		})
	}
	if strings.TrimSpace(*docPath) != "" {
		actx.Documents = append(actx.Documents, documentContext(ctx, *docPath, config.DefaultPolicy().ExcerptChars))
	}

	prompt, err := agents.RenderPrompt(agent, actx)
	if err != nil {
		exitErr(err.Error())
	}
	fmt.Printf("agent: %s (%s)\nprompt sha256: %s\n\n%s\n", agent.Name, agent.ID, agents.HashPrompt(prompt), prompt)
	if !*invoke {
		return
	}

	capability, err := buildCapability(cfg)
	if err != nil {
		exitErr(err.Error())
	}
	callCtx, cancel := context.WithTimeout(ctx, config.DefaultPolicy().JobTimeout)
	defer cancel()
	started := time.Now()
	res, err := capability.Invoke(callCtx, agents.Invocation{Agent: agent, Domain: slug, Context: actx, Prompt: prompt})
	if err != nil {
		exitErr(fmt.Sprintf("invoke agent: %v", err))
	}
	if strings.TrimSpace(*outPath) != "" {
		if err := os.WriteFile(*outPath, []byte(res.Response), 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	finding, err := agents.ParseFinding(res.Response)
	if err != nil {
		exitErr(fmt.Sprintf("agent output rejected: %v\n%s", err, res.Response))
	}
	out, _ := json.MarshalIndent(finding, "", "  ")
	fmt.Printf("\nduration: %s tokens: %d\n%s\n", time.Since(started).Round(time.Millisecond), res.TokensUsed, out)
}

func documentContext(ctx context.Context, path string, maxChars int) agents.ContextDocument {
	raw, err := os.ReadFile(path)
	if err != nil {
		exitErr(fmt.Sprintf("read document: %v", err))
	}
	name := filepath.Base(path)
	doc := agents.ContextDocument{FileName: name, SizeBytes: int64(len(raw)), StorageKey: path}
	text, err := extract.TextFromBytes(ctx, raw, "", name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "excerpt skipped: %v\n", err)
		return doc
	}
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) > maxChars {
		runes = append(runes[:maxChars], '…')
	}
	doc.Excerpt = string(runes)
	return doc
}

func buildCapability(cfg config.Config) (agents.Capability, error) {
	if cfg.AgentProvider != "openai" {
		return agents.Placeholder{}, nil
	}
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.AgentModel)
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
