package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Placeholder is a deterministic local capability for dev runs. It scores a
// domain as the mean of its answer scores and recommends work on the weakest
// answers.
type Placeholder struct{}

func (Placeholder) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var scored []ContextAnswer
	total := 0.0
	for _, a := range inv.Context.Answers {
		if a.Score != nil {
			scored = append(scored, a)
			total += *a.Score
		}
	}
	score := 50.0
	if len(scored) > 0 {
		score = total / float64(len(scored))
	}
	sort.SliceStable(scored, func(i, j int) bool { return *scored[i].Score < *scored[j].Score })

	recs := []string{}
	for _, a := range scored {
		if len(recs) == 3 {
			break
		}
		recs = append(recs, fmt.Sprintf("Improve: %s", a.Question))
	}
	if len(recs) == 0 {
		recs = append(recs, fmt.Sprintf("Collect baseline data for %s", inv.Context.DomainName))
	}

	body, err := json.Marshal(Finding{
		Score:           score,
		Summary:         fmt.Sprintf("%s scored %.0f across %d scored answers.", inv.Context.DomainName, score, len(scored)),
		Recommendations: recs,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: string(body)}, nil
}

var _ Capability = Placeholder{}
