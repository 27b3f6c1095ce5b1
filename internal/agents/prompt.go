package agents

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"text/template"
)

// PromptVersion identifies the prompt template revision stored with each job.
const PromptVersion = "domain_analysis_v1"

//go:embed prompts/domain_analysis.tmpl
var domainAnalysisTemplate string

var promptTemplate = template.Must(template.New("domain_analysis").
	Funcs(template.FuncMap{
		"deref": func(f *float64) float64 {
			if f == nil {
				return 0
			}
			return *f
		},
	}).
	Parse(domainAnalysisTemplate))

// RenderPrompt builds the user prompt for one domain invocation.
func RenderPrompt(agent Agent, actx AssessmentContext) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Agent   Agent
		Context AssessmentContext
	}{agent, actx})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// HashPrompt returns a stable fingerprint of a rendered prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(PromptVersion + "\n" + prompt))
	return hex.EncodeToString(sum[:])
}
