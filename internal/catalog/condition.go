package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operator names the comparison a Condition applies.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpAnswered Operator = "answered"
	OpContains Operator = "contains"
	OpAll      Operator = "all"
	OpAny      Operator = "any"
)

var operatorAliases = map[string]Operator{
	"==": OpEq, "=": OpEq, "eq": OpEq, "equals": OpEq,
	"!=": OpNeq, "neq": OpNeq, "ne": OpNeq,
	">": OpGt, "gt": OpGt,
	">=": OpGte, "gte": OpGte, "ge": OpGte,
	"<": OpLt, "lt": OpLt,
	"<=": OpLte, "lte": OpLte, "le": OpLte,
	"answered": OpAnswered, "exists": OpAnswered,
	"contains": OpContains,
	"all": OpAll, "and": OpAll,
	"any": OpAny, "or": OpAny,
}

// Condition is a follow-up trigger. Leaf conditions compare the recorded
// answer to QuestionID; OpAll and OpAny combine Conditions.
type Condition struct {
	QuestionID string      `json:"questionId,omitempty" yaml:"question_id,omitempty"`
	Operator   Operator    `json:"operator" yaml:"operator"`
	Threshold  float64     `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Value      string      `json:"value,omitempty" yaml:"value,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Answer is the recorded response a condition is evaluated against.
type Answer struct {
	Score *float64
	Text  string
}

// Answered reports whether the answer carries a score or non-blank text.
func (a Answer) Answered() bool {
	return a.Score != nil || strings.TrimSpace(a.Text) != ""
}

// ParseCondition decodes the JSON trigger encoding. An empty or null payload
// yields nil.
func ParseCondition(raw []byte) (*Condition, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return nil, fmt.Errorf("decode trigger: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Normalize resolves operator aliases in place and validates the tree.
func (c *Condition) Normalize() error {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(string(c.Operator)))]
	if !ok {
		return fmt.Errorf("unknown trigger operator %q", c.Operator)
	}
	c.Operator = op
	switch op {
	case OpAll, OpAny:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s trigger needs conditions", op)
		}
		for i := range c.Conditions {
			if err := c.Conditions[i].Normalize(); err != nil {
				return err
			}
		}
	default:
		if strings.TrimSpace(c.QuestionID) == "" {
			return fmt.Errorf("%s trigger needs questionId", op)
		}
	}
	return nil
}

// Evaluate reports whether the condition holds for answers. It is pure: the
// result depends only on its inputs, so it is re-run on every read.
func (c Condition) Evaluate(answers map[string]Answer) bool {
	switch c.Operator {
	case OpAll:
		for _, sub := range c.Conditions {
			if !sub.Evaluate(answers) {
				return false
			}
		}
		return len(c.Conditions) > 0
	case OpAny:
		for _, sub := range c.Conditions {
			if sub.Evaluate(answers) {
				return true
			}
		}
		return false
	}

	ans, ok := answers[c.QuestionID]
	if !ok || !ans.Answered() {
		return false
	}
	switch c.Operator {
	case OpAnswered:
		return true
	case OpContains:
		return c.Value != "" && strings.Contains(strings.ToLower(ans.Text), strings.ToLower(c.Value))
	case OpEq, OpNeq:
		var eq bool
		if c.Value != "" {
			eq = equalFold(strings.TrimSpace(ans.Text), c.Value)
		} else {
			eq = ans.Score != nil && *ans.Score == c.Threshold
		}
		if c.Operator == OpEq {
			return eq
		}
		return !eq
	}

	if ans.Score == nil {
		return false
	}
	score := *ans.Score
	switch c.Operator {
	case OpGt:
		return score > c.Threshold
	case OpGte:
		return score >= c.Threshold
	case OpLt:
		return score < c.Threshold
	case OpLte:
		return score <= c.Threshold
	}
	return false
}

// References lists every question id the condition reads.
func (c Condition) References() []string {
	if c.Operator == OpAll || c.Operator == OpAny {
		var out []string
		for _, sub := range c.Conditions {
			out = append(out, sub.References()...)
		}
		return out
	}
	return []string{c.QuestionID}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
