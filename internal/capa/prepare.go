package capa

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/dlclark/regexp2"
)

// PreparedProblem is a resolved problem variant: scripts evaluated, choices
// shuffled, answer expressions reduced, all deterministically from the seed.
type PreparedProblem struct {
	DisplayName string
	Seed        int64
	Variables   map[string]any
	Responses   []PreparedResponse
}

// PreparedResponse is a gradeable response. Implementations are the prepared
// counterparts of the ResponseXML types.
type PreparedResponse interface {
	AnswerID() string
	Points() float64
	Input() InputModel
	grade(ctx context.Context, g *Grader, raw string) (Correctness, string)
}

type preparedBase struct {
	answerID string
	points   float64
}

func (b preparedBase) AnswerID() string { return b.answerID }
func (b preparedBase) Points() float64  { return b.points }

type PreparedChoice struct {
	Name    string
	Text    string
	correct bool
}

type preparedChoiceResponse struct {
	preparedBase
	kind    string // choicegroup or optioninput
	prompt  string
	choices []PreparedChoice
}

func (r *preparedChoiceResponse) Input() InputModel {
	in := InputModel{AnswerID: r.answerID, Kind: r.kind, Prompt: r.prompt}
	for _, c := range r.choices {
		in.Choices = append(in.Choices, ChoiceOption{Name: c.Name, Text: c.Text})
	}
	return in
}

func (r *preparedChoiceResponse) grade(_ context.Context, _ *Grader, raw string) (Correctness, string) {
	for _, c := range r.choices {
		if c.Name == raw {
			if c.correct {
				return Correct, ""
			}
			return Incorrect, ""
		}
	}
	return Incorrect, ""
}

type preparedNumericalResponse struct {
	preparedBase
	prompt string
	target float64
	tol    tolerance
	vars   map[string]any
}

func (r *preparedNumericalResponse) Input() InputModel {
	return InputModel{AnswerID: r.answerID, Kind: "textline", Prompt: r.prompt}
}

func (r *preparedNumericalResponse) grade(_ context.Context, _ *Grader, raw string) (Correctness, string) {
	v, err := evalNumeric(raw, r.vars)
	if err != nil {
		return Incorrect, ReasonUnparseable
	}
	if r.tol.within(v, r.target) {
		return Correct, ""
	}
	return Incorrect, ""
}

type preparedFormulaResponse struct {
	preparedBase
	prompt   string
	tol      tolerance
	samples  []map[string]any
	expected []float64
}

func (r *preparedFormulaResponse) Input() InputModel {
	return InputModel{AnswerID: r.answerID, Kind: "formulaequationinput", Prompt: r.prompt}
}

func (r *preparedFormulaResponse) grade(_ context.Context, _ *Grader, raw string) (Correctness, string) {
	for i, pt := range r.samples {
		got, err := evalNumeric(raw, pt)
		if err != nil {
			return Incorrect, ReasonUnparseable
		}
		if !r.tol.within(got, r.expected[i]) {
			return Incorrect, ""
		}
	}
	return Correct, ""
}

type preparedStringResponse struct {
	preparedBase
	prompt     string
	answers    []string
	caseless   bool
	regexps    []*regexp2.Regexp
	useRegexps bool
}

func (r *preparedStringResponse) Input() InputModel {
	return InputModel{AnswerID: r.answerID, Kind: "textline", Prompt: r.prompt}
}

func (r *preparedStringResponse) grade(_ context.Context, g *Grader, raw string) (Correctness, string) {
	raw = strings.TrimSpace(raw)
	if r.useRegexps {
		for _, re := range r.regexps {
			ok, err := re.MatchString(raw)
			if err != nil {
				g.log.Warn("string response regex failed", "error", err)
				return Incorrect, ReasonGraderError
			}
			if ok {
				return Correct, ""
			}
		}
		return Incorrect, ""
	}
	for _, want := range r.answers {
		if r.caseless && strings.EqualFold(raw, want) {
			return Correct, ""
		}
		if !r.caseless && raw == want {
			return Correct, ""
		}
	}
	return Incorrect, ""
}

type preparedCustomResponse struct {
	preparedBase
	prompt string
	script string
	expect string
	vars   map[string]any
}

func (r *preparedCustomResponse) Input() InputModel {
	return InputModel{AnswerID: r.answerID, Kind: "textline", Prompt: r.prompt}
}

func (r *preparedCustomResponse) grade(ctx context.Context, g *Grader, raw string) (Correctness, string) {
	ok, err := g.runCheck(ctx, r.script, raw, r.expect, r.vars)
	if err != nil {
		g.log.Warn("custom grader failed", "error", err)
		return Incorrect, ReasonGraderError
	}
	if ok {
		return Correct, ""
	}
	return Incorrect, ""
}

// Prepare resolves a parsed problem into a gradeable variant. The same
// (problem, seed) pair always yields the same variant.
func Prepare(p *Problem, seed int64) (*PreparedProblem, error) {
	rng := rand.New(rand.NewSource(seed))
	vars, err := evalScriptVars(p.Scripts, rng)
	if err != nil {
		return nil, err
	}
	out := &PreparedProblem{
		DisplayName: p.DisplayName,
		Seed:        seed,
		Variables:   vars,
	}
	for i, raw := range p.Responses {
		resp, err := prepareResponse(raw, i, vars, rng)
		if err != nil {
			return nil, err
		}
		out.Responses = append(out.Responses, resp)
	}
	return out, nil
}

func prepareResponse(raw ResponseXML, idx int, vars map[string]any, rng *rand.Rand) (PreparedResponse, error) {
	base := preparedBase{answerID: raw.id()}
	if base.answerID == "" {
		base.answerID = fmt.Sprintf("q%d", idx+1)
	}
	pts, err := responsePoints(raw)
	if err != nil {
		return nil, err
	}
	base.points = pts

	switch r := raw.(type) {
	case MultipleChoiceResponseXML:
		resp := &preparedChoiceResponse{
			preparedBase: base,
			kind:         "choicegroup",
			prompt:       substituteVars(r.Label, vars),
		}
		for i, c := range r.ChoiceGroup.Choices {
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("choice_%d", i)
			}
			resp.choices = append(resp.choices, PreparedChoice{
				Name:    name,
				Text:    substituteVars(strings.TrimSpace(c.Text), vars),
				correct: strings.EqualFold(c.Correct, "true"),
			})
		}
		if strings.EqualFold(r.ChoiceGroup.Shuffle, "true") {
			rng.Shuffle(len(resp.choices), func(a, b int) {
				resp.choices[a], resp.choices[b] = resp.choices[b], resp.choices[a]
			})
		}
		return resp, nil

	case OptionResponseXML:
		resp := &preparedChoiceResponse{
			preparedBase: base,
			kind:         "optioninput",
			prompt:       substituteVars(r.Label, vars),
		}
		for _, opt := range r.OptionInput.ParseOptions() {
			resp.choices = append(resp.choices, PreparedChoice{
				Name:    opt,
				Text:    opt,
				correct: opt == r.OptionInput.Correct,
			})
		}
		if len(resp.choices) == 0 {
			return nil, fmt.Errorf("optionresponse %s: no options declared", base.answerID)
		}
		return resp, nil

	case NumericalResponseXML:
		target, err := evalNumeric(substituteVars(r.Answer, vars), vars)
		if err != nil {
			return nil, fmt.Errorf("numericalresponse %s: answer: %w", base.answerID, err)
		}
		tol, err := parseTolerance(toleranceParam(r.Params, "0"))
		if err != nil {
			return nil, fmt.Errorf("numericalresponse %s: %w", base.answerID, err)
		}
		return &preparedNumericalResponse{
			preparedBase: base,
			prompt:       substituteVars(r.Label, vars),
			target:       target,
			tol:          tol,
			vars:         vars,
		}, nil

	case FormulaResponseXML:
		spec, err := parseSamples(r.Samples)
		if err != nil {
			return nil, fmt.Errorf("formularesponse %s: %w", base.answerID, err)
		}
		tol, err := parseTolerance(toleranceParam(r.Params, "0.001%"))
		if err != nil {
			return nil, fmt.Errorf("formularesponse %s: %w", base.answerID, err)
		}
		points := spec.draw(rng)
		expected := make([]float64, len(points))
		answer := substituteVars(r.Answer, vars)
		for i, pt := range points {
			if expected[i], err = evalNumeric(answer, merged(vars, pt)); err != nil {
				return nil, fmt.Errorf("formularesponse %s: answer: %w", base.answerID, err)
			}
			points[i] = merged(vars, pt)
		}
		return &preparedFormulaResponse{
			preparedBase: base,
			prompt:       substituteVars(r.Label, vars),
			tol:          tol,
			samples:      points,
			expected:     expected,
		}, nil

	case StringResponseXML:
		resp := &preparedStringResponse{
			preparedBase: base,
			prompt:       substituteVars(r.Label, vars),
			caseless:     strings.Contains(r.Type, "ci"),
			useRegexps:   strings.Contains(r.Type, "regexp"),
		}
		for _, a := range r.Answers() {
			resp.answers = append(resp.answers, substituteVars(a, vars))
		}
		if resp.useRegexps {
			opts := regexp2.None
			if resp.caseless {
				opts |= regexp2.IgnoreCase
			}
			for _, a := range resp.answers {
				re, err := regexp2.Compile(a, opts)
				if err != nil {
					return nil, fmt.Errorf("stringresponse %s: pattern %q: %w", base.answerID, a, err)
				}
				re.MatchTimeout = regexMatchTimeout
				resp.regexps = append(resp.regexps, re)
			}
		}
		return resp, nil

	case CustomResponseXML:
		script := strings.TrimSpace(r.Script.Body)
		if script == "" {
			return nil, fmt.Errorf("customresponse %s: missing check script", base.answerID)
		}
		return &preparedCustomResponse{
			preparedBase: base,
			prompt:       substituteVars(r.Label, vars),
			script:       script,
			expect:       substituteVars(r.Expect, vars),
			vars:         vars,
		}, nil
	}
	return nil, fmt.Errorf("unsupported response type %s", raw.tag())
}

func merged(vars, pt map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+len(pt))
	for k, v := range vars {
		out[k] = v
	}
	for k, v := range pt {
		out[k] = v
	}
	return out
}
