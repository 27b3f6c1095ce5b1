package agents

import (
	"context"
	"errors"
)

var (
	// ErrTimeout marks an agent call that ran out of time.
	ErrTimeout = errors.New("agent call timed out")
	// ErrInvalidOutput marks a response that does not match the finding contract.
	ErrInvalidOutput = errors.New("agent output invalid")
)

// Capability is the external analysis agent. Calls may take minutes and must
// be safe to repeat; the engine never assumes the agent is idempotent.
type Capability interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// Invocation is one call for one domain of one assessment.
type Invocation struct {
	Agent   Agent
	Domain  string
	Context AssessmentContext
	Prompt  string
}

// Result is the raw agent response and its token usage.
type Result struct {
	Response   string
	TokensUsed int
}

// AssessmentContext is the read-only material handed to an agent.
type AssessmentContext struct {
	AssessmentID string            `json:"assessmentId"`
	Industry     string            `json:"industry"`
	Domain       string            `json:"domain"`
	DomainName   string            `json:"domainName"`
	Answers      []ContextAnswer   `json:"answers"`
	Documents    []ContextDocument `json:"documents"`
}

// ContextAnswer pairs a question with the recorded response.
type ContextAnswer struct {
	QuestionID string   `json:"questionId"`
	Question   string   `json:"question"`
	Type       string   `json:"type"`
	Text       string   `json:"text,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// ContextDocument is supporting document metadata plus an optional excerpt.
type ContextDocument struct {
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
	StorageKey string `json:"storageKey"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, inv Invocation) (Result, error)

func (f CapabilityFunc) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}
