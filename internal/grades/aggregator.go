package grades

import (
	"sort"
)

// BlockScore is one graded block's contribution: the assignment category it
// belongs to and its raw earned/possible points.
type BlockScore struct {
	UsageKey string  `json:"usage_key"`
	Category string  `json:"category"`
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
}

// Normalized returns earned/possible, with 0/0 scoring 0.
func (s BlockScore) Normalized() float64 {
	if s.Possible == 0 {
		return 0
	}
	return s.Earned / s.Possible
}

type CategoryBreakdown struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Counted  int     `json:"counted"`
	Dropped  int     `json:"dropped"`
	Padded   int     `json:"padded"`
}

type CourseSummary struct {
	Percent   float64             `json:"percent"`
	Passed    bool                `json:"passed"`
	Breakdown []CategoryBreakdown `json:"breakdown"`
}

// Summarize rolls block scores up into a course grade under the policy.
// It is a pure function of its inputs: category order follows the policy,
// and drop ties break on usage key, so recomputation is idempotent.
func Summarize(policy GradingPolicy, scores []BlockScore) CourseSummary {
	byCategory := make(map[string][]BlockScore)
	for _, s := range scores {
		byCategory[s.Category] = append(byCategory[s.Category], s)
	}

	summary := CourseSummary{Breakdown: make([]CategoryBreakdown, 0, len(policy.Assignments))}
	for _, a := range policy.Assignments {
		b := summarizeCategory(a, byCategory[a.Category])
		summary.Percent += b.Score * b.Weight
		summary.Breakdown = append(summary.Breakdown, b)
	}
	summary.Passed = summary.Percent >= policy.PassThreshold
	return summary
}

func summarizeCategory(a AssignmentPolicy, scores []BlockScore) CategoryBreakdown {
	b := CategoryBreakdown{Category: a.Category, Weight: a.Weight}

	kept := make([]BlockScore, len(scores))
	copy(kept, scores)
	sort.Slice(kept, func(i, j int) bool {
		ni, nj := kept[i].Normalized(), kept[j].Normalized()
		if ni != nj {
			return ni < nj
		}
		return kept[i].UsageKey < kept[j].UsageKey
	})
	if drop := a.DropLowest; drop > 0 {
		if drop > len(kept) {
			drop = len(kept)
		}
		kept = kept[drop:]
		b.Dropped = len(scores) - len(kept)
	}

	denominator := len(kept)
	if a.MinCount > denominator {
		b.Padded = a.MinCount - denominator
		denominator = a.MinCount
	}
	b.Counted = len(kept)
	if denominator == 0 {
		return b
	}
	var sum float64
	for _, s := range kept {
		sum += s.Normalized()
	}
	b.Score = sum / float64(denominator)
	return b
}
