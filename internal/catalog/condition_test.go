package catalog

import "testing"

func score(v float64) *float64 { return &v }

func TestConditionEvaluate(t *testing.T) {
	answers := map[string]Answer{
		"SA-01": {Score: score(25), Text: "Ad hoc"},
		"SA-02": {Score: score(75), Text: "Established"},
		"SA-03": {Text: "We rely on a spreadsheet owned by finance"},
		"SA-04": {},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"lte hit", Condition{QuestionID: "SA-01", Operator: OpLte, Threshold: 25}, true},
		{"lt miss", Condition{QuestionID: "SA-01", Operator: OpLt, Threshold: 25}, false},
		{"gt hit", Condition{QuestionID: "SA-02", Operator: OpGt, Threshold: 50}, true},
		{"gte boundary", Condition{QuestionID: "SA-02", Operator: OpGte, Threshold: 75}, true},
		{"eq score", Condition{QuestionID: "SA-02", Operator: OpEq, Threshold: 75}, true},
		{"eq text", Condition{QuestionID: "SA-01", Operator: OpEq, Value: "ad hoc"}, true},
		{"neq text", Condition{QuestionID: "SA-01", Operator: OpNeq, Value: "Optimized"}, true},
		{"contains", Condition{QuestionID: "SA-03", Operator: OpContains, Value: "SPREADSHEET"}, true},
		{"answered", Condition{QuestionID: "SA-03", Operator: OpAnswered}, true},
		{"blank answer is unanswered", Condition{QuestionID: "SA-04", Operator: OpAnswered}, false},
		{"missing answer", Condition{QuestionID: "SA-09", Operator: OpLte, Threshold: 100}, false},
		{"numeric op on text-only answer", Condition{QuestionID: "SA-03", Operator: OpLt, Threshold: 100}, false},
		{"all", Condition{Operator: OpAll, Conditions: []Condition{
			{QuestionID: "SA-01", Operator: OpLte, Threshold: 25},
			{QuestionID: "SA-02", Operator: OpGte, Threshold: 75},
		}}, true},
		{"any", Condition{Operator: OpAny, Conditions: []Condition{
			{QuestionID: "SA-01", Operator: OpGt, Threshold: 90},
			{QuestionID: "SA-03", Operator: OpAnswered},
		}}, true},
		{"empty all", Condition{Operator: OpAll}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Evaluate(answers); got != tt.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition([]byte(`{"questionId":"FM-01","operator":"<=","threshold":25}`))
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if c.Operator != OpLte || c.QuestionID != "FM-01" || c.Threshold != 25 {
		t.Fatalf("unexpected condition: %+v", c)
	}

	nested, err := ParseCondition([]byte(`{"operator":"or","conditions":[{"questionId":"A","operator":"exists"}]}`))
	if err != nil {
		t.Fatalf("ParseCondition nested: %v", err)
	}
	if nested.Operator != OpAny || nested.Conditions[0].Operator != OpAnswered {
		t.Fatalf("aliases not normalized: %+v", nested)
	}

	for _, raw := range []string{"", "null", "{}"} {
		c, err := ParseCondition([]byte(raw))
		if err != nil || c != nil {
			t.Fatalf("expected nil condition for %q, got %+v, %v", raw, c, err)
		}
	}

	bad := []string{
		`{"questionId":"A","operator":"approx"}`,
		`{"operator":"gt","threshold":3}`,
		`{"operator":"all"}`,
		`not json`,
	}
	for _, raw := range bad {
		if _, err := ParseCondition([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}
