package capa

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// mathEnv returns the evaluation environment for numeric answer and
// submission expressions: constants, the usual functions, plus vars.
func mathEnv(vars map[string]any) map[string]any {
	env := map[string]any{
		"pi":    math.Pi,
		"e":     math.E,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sqrt":  math.Sqrt,
		"exp":   math.Exp,
		"ln":    math.Log,
		"log10": math.Log10,
		"fabs":  math.Abs,
		"pow":   math.Pow,
	}
	for k, v := range vars {
		env[k] = v
	}
	return env
}

// evalNumeric evaluates a real-valued expression such as "3.14", "2*pi" or
// "9.3*10^7" against the given variable table.
func evalNumeric(src string, vars map[string]any) (float64, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return 0, fmt.Errorf("empty expression")
	}
	// Fast path for plain literals, including "1e-3".
	if v, err := strconv.ParseFloat(src, 64); err == nil {
		return v, nil
	}
	env := mathEnv(vars)
	out, err := expr.Eval(src, env)
	if err != nil {
		return 0, err
	}
	return toFloat(out)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expression result %T is not numeric", v)
	}
}

// tolerance is an absolute or percent-of-target comparison margin.
type tolerance struct {
	value   float64
	percent bool
}

func parseTolerance(raw string) (tolerance, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tolerance{}, nil
	}
	pct := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return tolerance{}, fmt.Errorf("invalid tolerance %q", raw)
	}
	return tolerance{value: v, percent: pct}, nil
}

func (t tolerance) within(got, target float64) bool {
	margin := t.value
	if t.percent {
		margin = math.Abs(target) * t.value / 100
	}
	return math.Abs(got-target) <= margin
}

// sampleSpec is the parsed samples attribute of a formula response:
// "x,y@1,2:3,4#10" declares variables x,y sampled uniformly between the
// lows 1,2 and highs 3,4 at 10 points.
type sampleSpec struct {
	names []string
	lows  []float64
	highs []float64
	n     int
}

const minFormulaSamples = 5

func parseSamples(raw string) (sampleSpec, error) {
	var s sampleSpec
	at := strings.Index(raw, "@")
	hash := strings.LastIndex(raw, "#")
	if at < 0 || hash < at {
		return s, fmt.Errorf("invalid samples %q", raw)
	}
	s.names = strings.Split(raw[:at], ",")
	n, err := strconv.Atoi(raw[hash+1:])
	if err != nil {
		return s, fmt.Errorf("invalid samples %q: %w", raw, err)
	}
	if n < minFormulaSamples {
		return s, fmt.Errorf("samples %q: need at least %d points", raw, minFormulaSamples)
	}
	s.n = n

	ranges := strings.SplitN(raw[at+1:hash], ":", 2)
	if len(ranges) != 2 {
		return s, fmt.Errorf("invalid samples %q: missing range", raw)
	}
	if s.lows, err = parseFloatList(ranges[0]); err != nil {
		return s, fmt.Errorf("invalid samples %q: %w", raw, err)
	}
	if s.highs, err = parseFloatList(ranges[1]); err != nil {
		return s, fmt.Errorf("invalid samples %q: %w", raw, err)
	}
	if len(s.lows) != len(s.names) || len(s.highs) != len(s.names) {
		return s, fmt.Errorf("invalid samples %q: range arity mismatch", raw)
	}
	return s, nil
}

func parseFloatList(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// draw produces the sample points for this spec from rng. Points are fixed
// at prepare time so grading stays deterministic.
func (s sampleSpec) draw(rng *rand.Rand) []map[string]any {
	points := make([]map[string]any, s.n)
	for i := range points {
		pt := make(map[string]any, len(s.names))
		for j, name := range s.names {
			pt[name] = s.lows[j] + rng.Float64()*(s.highs[j]-s.lows[j])
		}
		points[i] = pt
	}
	return points
}

// evalScriptVars runs problem-level script blocks: one "name = expression"
// assignment per line, evaluated in order. Later lines see earlier values,
// and rng-backed helpers make variants deterministic per seed.
func evalScriptVars(scripts []Script, rng *rand.Rand) (map[string]any, error) {
	vars := map[string]any{}
	helpers := map[string]any{
		"random":  func() float64 { return rng.Float64() },
		"randint": func(lo, hi int) int { return lo + rng.Intn(hi-lo+1) },
		"uniform": func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) },
	}
	for _, script := range scripts {
		for _, line := range strings.Split(script.Body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			name, src, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("script line %q: not an assignment", line)
			}
			name = strings.TrimSpace(name)
			env := mathEnv(vars)
			for k, v := range helpers {
				env[k] = v
			}
			out, err := expr.Eval(strings.TrimSpace(src), env)
			if err != nil {
				return nil, fmt.Errorf("script variable %s: %w", name, err)
			}
			vars[name] = out
		}
	}
	return vars, nil
}

// substituteVars replaces $name references in text with variable values,
// longest names first so $x2 is not clobbered by $x.
func substituteVars(text string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(text, "$") {
		return text
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		text = strings.ReplaceAll(text, "$"+name, formatVar(vars[name]))
	}
	return text
}

func formatVar(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}
