package grades

import (
	"fmt"
	"math"
)

// AssignmentPolicy configures one assignment category of a course's grading
// policy.
type AssignmentPolicy struct {
	Category   string  `json:"category" yaml:"category"`
	Weight     float64 `json:"weight" yaml:"weight"`
	DropLowest int     `json:"drop_lowest" yaml:"drop_lowest"`
	MinCount   int     `json:"min_count" yaml:"min_count"`
}

// GradingPolicy is declared on the course and turns per-block scores into a
// course score.
type GradingPolicy struct {
	Assignments   []AssignmentPolicy `json:"assignments" yaml:"assignments"`
	PassThreshold float64            `json:"pass_threshold" yaml:"pass_threshold"`
}

const weightEpsilon = 1e-4

func (p GradingPolicy) Validate() error {
	if len(p.Assignments) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(p.Assignments))
	var sum float64
	for _, a := range p.Assignments {
		if a.Category == "" {
			return fmt.Errorf("grading policy: empty category")
		}
		if seen[a.Category] {
			return fmt.Errorf("grading policy: duplicate category %q", a.Category)
		}
		seen[a.Category] = true
		if a.Weight < 0 {
			return fmt.Errorf("grading policy: negative weight for %q", a.Category)
		}
		if a.DropLowest < 0 || a.MinCount < 0 {
			return fmt.Errorf("grading policy: negative drop_lowest/min_count for %q", a.Category)
		}
		sum += a.Weight
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("grading policy: weights sum to %v, want 1.0", sum)
	}
	if p.PassThreshold < 0 || p.PassThreshold > 1 {
		return fmt.Errorf("grading policy: pass threshold %v out of [0,1]", p.PassThreshold)
	}
	return nil
}

func (p GradingPolicy) Assignment(category string) (AssignmentPolicy, bool) {
	for _, a := range p.Assignments {
		if a.Category == category {
			return a, true
		}
	}
	return AssignmentPolicy{}, false
}
