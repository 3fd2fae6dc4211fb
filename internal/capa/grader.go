package capa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/yungbote/courseware-backend/internal/logger"
)

type Correctness string

const (
	Correct   Correctness = "correct"
	Incorrect Correctness = "incorrect"
)

// Reasons attached to Incorrect marks that did not come from comparison.
const (
	ReasonUnparseable = "unparseable"
	ReasonGraderError = "grader_error"
)

const regexMatchTimeout = 250 * time.Millisecond

type GradingResult struct {
	Correctness map[string]Correctness `json:"correctness"`
	Earned      float64                `json:"earned"`
	Possible    float64                `json:"possible"`
	Reasons     map[string]string      `json:"reasons,omitempty"`
}

// Attempted reports whether the problem counts toward scoring at all.
func (r GradingResult) Attempted() bool { return r.Possible > 0 }

type RenderModel struct {
	DisplayName string       `json:"display_name,omitempty"`
	Inputs      []InputModel `json:"inputs"`
}

type InputModel struct {
	AnswerID string         `json:"answer_id"`
	Kind     string         `json:"kind"`
	Prompt   string         `json:"prompt,omitempty"`
	Choices  []ChoiceOption `json:"choices,omitempty"`
	Value    string         `json:"value,omitempty"`
}

type ChoiceOption struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Grader prepares and grades problems. Custom check scripts run under the
// configured cpu/memory budgets.
type Grader struct {
	log       *logger.Logger
	cpuBudget time.Duration
	memBudget int
}

func NewGrader(cpuMS, memBytes int, baseLog *logger.Logger) *Grader {
	if cpuMS <= 0 {
		cpuMS = 100
	}
	if memBytes <= 0 {
		memBytes = 1 << 20
	}
	return &Grader{
		log:       baseLog.With("component", "capa_grader"),
		cpuBudget: time.Duration(cpuMS) * time.Millisecond,
		memBudget: memBytes,
	}
}

// Prepare parses raw problem XML and resolves the seeded variant.
func (g *Grader) Prepare(rawXML string, seed int64) (*PreparedProblem, error) {
	p, err := ParseProblem(rawXML)
	if err != nil {
		return nil, err
	}
	return Prepare(p, seed)
}

// Render describes the prepared problem's inputs, carrying prior answers
// keyed by answer id when present.
func (g *Grader) Render(p *PreparedProblem, prior map[string]string) RenderModel {
	m := RenderModel{DisplayName: p.DisplayName, Inputs: make([]InputModel, 0, len(p.Responses))}
	for _, r := range p.Responses {
		in := r.Input()
		in.Value = prior[in.AnswerID]
		m.Inputs = append(m.Inputs, in)
	}
	return m
}

// Grade marks a submission against the prepared problem. It is deterministic
// and never panics: per-response grader failures mark that response Incorrect
// with a reason instead.
func (g *Grader) Grade(ctx context.Context, p *PreparedProblem, submission map[string]string) GradingResult {
	result := GradingResult{
		Correctness: make(map[string]Correctness, len(p.Responses)),
		Reasons:     map[string]string{},
	}
	for _, r := range p.Responses {
		id := r.AnswerID()
		result.Possible += r.Points()

		raw := submission[id]
		var (
			mark   Correctness
			reason string
		)
		if strings.TrimSpace(raw) == "" {
			mark = Incorrect
		} else {
			mark, reason = g.gradeOne(ctx, r, raw)
		}
		result.Correctness[id] = mark
		if reason != "" {
			result.Reasons[id] = reason
		}
		if mark == Correct {
			result.Earned += r.Points()
		}
	}
	if len(result.Reasons) == 0 {
		result.Reasons = nil
	}
	return result
}

func (g *Grader) gradeOne(ctx context.Context, r PreparedResponse, raw string) (mark Correctness, reason string) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("grader panicked", "answer_id", r.AnswerID(), "panic", fmt.Sprint(rec))
			mark, reason = Incorrect, ReasonGraderError
		}
	}()
	return r.grade(ctx, g, raw)
}

// runCheck evaluates a custom check expression. The environment exposes the
// raw submission, the declared expect value and the problem variables. The
// script must yield a boolean.
func (g *Grader) runCheck(ctx context.Context, script, submission, expect string, vars map[string]any) (bool, error) {
	if len(script) > g.memBudget {
		return false, fmt.Errorf("check script exceeds %d byte budget", g.memBudget)
	}
	env := mathEnv(vars)
	env["submission"] = submission
	env["expect"] = expect
	env["value"] = func() (float64, error) { return evalNumeric(submission, vars) }

	ctx, cancel := context.WithTimeout(ctx, g.cpuBudget)
	defer cancel()

	type checkOut struct {
		out any
		err error
	}
	done := make(chan checkOut, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- checkOut{err: fmt.Errorf("check script panicked: %v", rec)}
			}
		}()
		out, err := expr.Eval(script, env)
		done <- checkOut{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("check script timed out after %s", g.cpuBudget)
	case res := <-done:
		if res.err != nil {
			return false, res.err
		}
		ok, isBool := res.out.(bool)
		if !isBool {
			return false, fmt.Errorf("check script returned %T, want bool", res.out)
		}
		return ok, nil
	}
}
