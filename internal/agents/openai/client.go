// Package openai implements the analysis agent capability on OpenAI Chat
// Completions.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/shared/telemetry"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements agents.Capability.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. The HTTP timeout is a backstop;
// callers bound each invocation with a context deadline.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("AGENT_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Minute},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You are a rigorous business assessment analyst. Reply with JSON only."

// Invoke sends the rendered prompt and returns the raw JSON content.
func (c *Client) Invoke(ctx context.Context, inv agents.Invocation) (agents.Result, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: inv.Prompt},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	// gpt-5 family models reject a non-default temperature.
	if !isGPT5(c.model) {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return agents.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return agents.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return agents.Result{}, fmt.Errorf("%w: openai request: %w", agents.ErrTimeout, err)
		}
		return agents.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return agents.Result{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return agents.Result{}, fmt.Errorf("openai response parse (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return agents.Result{}, fmt.Errorf("openai error (status %d): %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return agents.Result{}, fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return agents.Result{}, fmt.Errorf("%w: openai response empty content", agents.ErrInvalidOutput)
	}

	result := agents.Result{Response: content}
	fields := map[string]any{
		"model":    c.model,
		"agent_id": inv.Agent.ID,
		"domain":   inv.Domain,
	}
	if parsed.Usage != nil {
		result.TokensUsed = parsed.Usage.TotalTokens
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("agent.response", fields)
	return result, nil
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ agents.Capability = (*Client)(nil)
