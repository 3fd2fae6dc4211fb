package capa_test

import (
	"context"
	"testing"

	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/logger"
)

func newGrader(t *testing.T) *capa.Grader {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	return capa.NewGrader(100, 1<<20, log)
}

func prepare(t *testing.T, xml string, seed int64) *capa.PreparedProblem {
	t.Helper()
	p, err := newGrader(t).Prepare(xml, seed)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return p
}

func TestMultipleChoiceGrading(t *testing.T) {
	g := newGrader(t)
	p := prepare(t, contenttest.MCProblemXML, 1)

	cases := []struct {
		name   string
		answer string
		want   capa.Correctness
		earned float64
	}{
		{"correct choice", "a", capa.Correct, 1},
		{"wrong choice", "b", capa.Incorrect, 0},
		{"unknown choice", "zzz", capa.Incorrect, 0},
		{"blank", "   ", capa.Incorrect, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := g.Grade(context.Background(), p, map[string]string{"q1": tc.answer})
			if res.Correctness["q1"] != tc.want {
				t.Fatalf("correctness = %s, want %s", res.Correctness["q1"], tc.want)
			}
			if res.Earned != tc.earned || res.Possible != 1 {
				t.Fatalf("score = (%v, %v), want (%v, 1)", res.Earned, res.Possible, tc.earned)
			}
		})
	}
}

func TestNumericalTolerance(t *testing.T) {
	g := newGrader(t)
	p := prepare(t, contenttest.NumericalProblemXML, 1)

	cases := []struct {
		answer string
		want   capa.Correctness
		reason string
	}{
		{"3.14", capa.Correct, ""},
		{"3.145", capa.Correct, ""},
		{"3.135", capa.Correct, ""},
		{"3.16", capa.Incorrect, ""},
		{"pi", capa.Correct, ""},
		{"1 +", capa.Incorrect, "unparseable"},
		{"hello", capa.Incorrect, "unparseable"},
	}
	for _, tc := range cases {
		t.Run(tc.answer, func(t *testing.T) {
			res := g.Grade(context.Background(), p, map[string]string{"q1": tc.answer})
			if res.Correctness["q1"] != tc.want {
				t.Fatalf("correctness = %s, want %s", res.Correctness["q1"], tc.want)
			}
			if res.Reasons["q1"] != tc.reason {
				t.Fatalf("reason = %q, want %q", res.Reasons["q1"], tc.reason)
			}
		})
	}
}

func TestNumericalPercentTolerance(t *testing.T) {
	const xml = `<problem>
  <numericalresponse answer="200">
    <responseparam type="tolerance" default="5%"/>
  </numericalresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	for answer, want := range map[string]capa.Correctness{
		"210": capa.Correct,   // within 5% of 200
		"190": capa.Correct,
		"211": capa.Incorrect,
	} {
		res := g.Grade(context.Background(), p, map[string]string{"q1": answer})
		if res.Correctness["q1"] != want {
			t.Fatalf("%s: correctness = %s, want %s", answer, res.Correctness["q1"], want)
		}
	}
}

func TestNumericalDefaultToleranceIsExact(t *testing.T) {
	const xml = `<problem><numericalresponse answer="4"/></problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	if res := g.Grade(context.Background(), p, map[string]string{"q1": "4"}); res.Correctness["q1"] != capa.Correct {
		t.Fatalf("exact answer marked %s", res.Correctness["q1"])
	}
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "4.0001"}); res.Correctness["q1"] != capa.Incorrect {
		t.Fatalf("off-by-epsilon answer marked correct with zero tolerance")
	}
	// Expressions reduce before comparison.
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "2*2"}); res.Correctness["q1"] != capa.Correct {
		t.Fatalf("expression answer marked %s", res.Correctness["q1"])
	}
}

func TestFormulaEquivalenceBySampling(t *testing.T) {
	const xml = `<problem>
  <formularesponse answer="x + y" samples="x,y@1,1:10,10#10">
    <responseparam type="tolerance" default="0.0001"/>
  </formularesponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 7)

	cases := []struct {
		answer string
		want   capa.Correctness
		reason string
	}{
		{"y + x", capa.Correct, ""},
		{"x + y + 0*x", capa.Correct, ""},
		{"x * y", capa.Incorrect, ""},
		{"x +", capa.Incorrect, "unparseable"},
	}
	for _, tc := range cases {
		t.Run(tc.answer, func(t *testing.T) {
			res := g.Grade(context.Background(), p, map[string]string{"q1": tc.answer})
			if res.Correctness["q1"] != tc.want {
				t.Fatalf("correctness = %s, want %s", res.Correctness["q1"], tc.want)
			}
			if res.Reasons["q1"] != tc.reason {
				t.Fatalf("reason = %q, want %q", res.Reasons["q1"], tc.reason)
			}
		})
	}
}

func TestFormulaRejectsTooFewSamples(t *testing.T) {
	const xml = `<problem><formularesponse answer="x" samples="x@1:10#3"/></problem>`
	log, _ := logger.New("development")
	if _, err := capa.NewGrader(100, 1<<20, log).Prepare(xml, 1); err == nil {
		t.Fatal("expected error for 3-point sample spec")
	}
}

func TestStringResponse(t *testing.T) {
	const xml = `<problem>
  <stringresponse answer="Michigan" type="ci">
    <additional_answer answer="MI"/>
  </stringresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	for answer, want := range map[string]capa.Correctness{
		"michigan":  capa.Correct,
		"MICHIGAN":  capa.Correct,
		" Michigan ": capa.Correct, // whitespace trimmed
		"mi":        capa.Correct,
		"Ohio":      capa.Incorrect,
	} {
		res := g.Grade(context.Background(), p, map[string]string{"q1": answer})
		if res.Correctness["q1"] != want {
			t.Fatalf("%q: correctness = %s, want %s", answer, res.Correctness["q1"], want)
		}
	}
}

func TestStringResponseRegexp(t *testing.T) {
	const xml = `<problem>
  <stringresponse answer="^colou?r$" type="ci regexp"/>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	for answer, want := range map[string]capa.Correctness{
		"color":   capa.Correct,
		"Colour":  capa.Correct,
		"colouur": capa.Incorrect,
	} {
		res := g.Grade(context.Background(), p, map[string]string{"q1": answer})
		if res.Correctness["q1"] != want {
			t.Fatalf("%q: correctness = %s, want %s", answer, res.Correctness["q1"], want)
		}
	}
}

func TestOptionResponse(t *testing.T) {
	const xml = `<problem>
  <optionresponse>
    <optioninput options="('yellow','blue','green')" correct="blue"/>
  </optionresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	m := g.Render(p, nil)
	if len(m.Inputs) != 1 || len(m.Inputs[0].Choices) != 3 {
		t.Fatalf("render model %+v", m)
	}
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "blue"}); res.Correctness["q1"] != capa.Correct {
		t.Fatalf("correct option marked %s", res.Correctness["q1"])
	}
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "yellow"}); res.Correctness["q1"] != capa.Incorrect {
		t.Fatal("wrong option marked correct")
	}
}

func TestCustomResponse(t *testing.T) {
	const xml = `<problem>
  <customresponse expect="42">
    <script type="text/expr">submission == expect</script>
  </customresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	if res := g.Grade(context.Background(), p, map[string]string{"q1": "42"}); res.Correctness["q1"] != capa.Correct {
		t.Fatalf("matching submission marked %s", res.Correctness["q1"])
	}
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "41"}); res.Correctness["q1"] != capa.Incorrect {
		t.Fatal("mismatching submission marked correct")
	}
}

func TestCustomResponseGraderErrorNeverPropagates(t *testing.T) {
	// The script yields an int, not a bool; the response is marked
	// incorrect with a reason instead of failing the grade call.
	const xml = `<problem>
  <customresponse expect="42">
    <script type="text/expr">1 + 1</script>
  </customresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	res := g.Grade(context.Background(), p, map[string]string{"q1": "42"})
	if res.Correctness["q1"] != capa.Incorrect {
		t.Fatalf("broken grader marked %s", res.Correctness["q1"])
	}
	if res.Reasons["q1"] != "grader_error" {
		t.Fatalf("reason = %q, want grader_error", res.Reasons["q1"])
	}
}

func TestScriptVariablesAndSubstitution(t *testing.T) {
	const xml = `<problem>
  <script type="text/expr">
    a = 3 + 4
    b = a * 2
  </script>
  <numericalresponse answer="$b">
    <label>What is $a doubled?</label>
  </numericalresponse>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	m := g.Render(p, nil)
	if m.Inputs[0].Prompt != "What is 7 doubled?" {
		t.Fatalf("prompt = %q", m.Inputs[0].Prompt)
	}
	if res := g.Grade(context.Background(), p, map[string]string{"q1": "14"}); res.Correctness["q1"] != capa.Correct {
		t.Fatalf("substituted answer marked %s", res.Correctness["q1"])
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	const xml = `<problem>
  <script type="text/expr">n = randint(1, 100)</script>
  <multiplechoiceresponse>
    <choicegroup shuffle="true">
      <choice correct="true" name="a">right</choice>
      <choice correct="false" name="b">wrong</choice>
      <choice correct="false" name="c">also wrong</choice>
    </choicegroup>
  </multiplechoiceresponse>
</problem>`
	g := newGrader(t)
	p1 := prepare(t, xml, 99)
	p2 := prepare(t, xml, 99)

	if p1.Variables["n"] != p2.Variables["n"] {
		t.Fatalf("variable differs across prepares: %v vs %v", p1.Variables["n"], p2.Variables["n"])
	}
	m1, m2 := g.Render(p1, nil), g.Render(p2, nil)
	for i := range m1.Inputs[0].Choices {
		if m1.Inputs[0].Choices[i] != m2.Inputs[0].Choices[i] {
			t.Fatalf("choice order differs at %d: %+v vs %+v", i, m1.Inputs[0].Choices[i], m2.Inputs[0].Choices[i])
		}
	}
}

func TestZeroResponsesScoresNothing(t *testing.T) {
	g := newGrader(t)
	p := prepare(t, `<problem><p>Read this.</p></problem>`, 1)

	res := g.Grade(context.Background(), p, nil)
	if res.Earned != 0 || res.Possible != 0 {
		t.Fatalf("score = (%v, %v), want (0, 0)", res.Earned, res.Possible)
	}
	if res.Attempted() {
		t.Fatal("zero-response problem counted as attempted")
	}
}

func TestMultiResponsePoints(t *testing.T) {
	const xml = `<problem>
  <numericalresponse answer="1" points="2"/>
  <numericalresponse answer="2"/>
</problem>`
	g := newGrader(t)
	p := prepare(t, xml, 1)

	res := g.Grade(context.Background(), p, map[string]string{"q1": "1", "q2": "99"})
	if res.Possible != 3 || res.Earned != 2 {
		t.Fatalf("score = (%v, %v), want (2, 3)", res.Earned, res.Possible)
	}
}

func TestRenderCarriesPriorAnswers(t *testing.T) {
	g := newGrader(t)
	p := prepare(t, contenttest.MCProblemXML, 1)

	m := g.Render(p, map[string]string{"q1": "a"})
	if m.Inputs[0].Value != "a" {
		t.Fatalf("value = %q, want a", m.Inputs[0].Value)
	}
}
