package agents

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Finding is the structured result an agent must return for a domain.
type Finding struct {
	Score           float64  `json:"score"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// ParseFinding validates an agent response against the finding contract:
// a JSON object with a 0-100 score, a non-empty summary and a list of
// recommendations. Markdown code fences around the object are tolerated.
func ParseFinding(response string) (Finding, error) {
	raw := stripFences(strings.TrimSpace(response))
	var payload struct {
		Score           *float64 `json:"score"`
		Summary         string   `json:"summary"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Finding{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if payload.Score == nil || math.IsNaN(*payload.Score) || *payload.Score < 0 || *payload.Score > 100 {
		return Finding{}, fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidOutput)
	}
	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return Finding{}, fmt.Errorf("%w: summary is empty", ErrInvalidOutput)
	}
	recs := make([]string, 0, len(payload.Recommendations))
	for _, r := range payload.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}
	return Finding{Score: *payload.Score, Summary: summary, Recommendations: recs}, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
