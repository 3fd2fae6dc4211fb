package capa

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Problem is a parsed problem definition. Responses keep document order so
// answer ids and seeded randomization are stable across parses.
type Problem struct {
	DisplayName string
	Scripts     []Script
	Responses   []ResponseXML
}

type Script struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

// ResponseXML is one response declaration from the problem XML. The concrete
// types below are the only implementations.
type ResponseXML interface {
	tag() string
	id() string
	points() string
}

type responseAttrs struct {
	ID     string `xml:"id,attr"`
	Points string `xml:"points,attr"`
}

func (a responseAttrs) id() string     { return a.ID }
func (a responseAttrs) points() string { return a.Points }

type MultipleChoiceResponseXML struct {
	responseAttrs
	Label       string      `xml:"label"`
	ChoiceGroup ChoiceGroup `xml:"choicegroup"`
}

func (MultipleChoiceResponseXML) tag() string { return "multiplechoiceresponse" }

type ChoiceGroup struct {
	Type    string   `xml:"type,attr"`
	Shuffle string   `xml:"shuffle,attr"`
	Choices []Choice `xml:"choice"`
}

type Choice struct {
	Correct string `xml:"correct,attr"`
	Name    string `xml:"name,attr"`
	Text    string `xml:",chardata"`
}

type OptionResponseXML struct {
	responseAttrs
	Label       string      `xml:"label"`
	OptionInput OptionInput `xml:"optioninput"`
}

func (OptionResponseXML) tag() string { return "optionresponse" }

type OptionInput struct {
	// Options is the legacy tuple form, e.g. ('yellow','blue','green').
	Options string `xml:"options,attr"`
	Correct string `xml:"correct,attr"`
}

// ParseOptions splits the legacy quoted-tuple options attribute.
func (o OptionInput) ParseOptions() []string {
	var out []string
	rest := o.Options
	for {
		i := strings.IndexAny(rest, `'"`)
		if i < 0 {
			break
		}
		quote := rest[i]
		rest = rest[i+1:]
		j := strings.IndexByte(rest, quote)
		if j < 0 {
			break
		}
		out = append(out, rest[:j])
		rest = rest[j+1:]
	}
	return out
}

type NumericalResponseXML struct {
	responseAttrs
	Answer string          `xml:"answer,attr"`
	Label  string          `xml:"label"`
	Params []ResponseParam `xml:"responseparam"`
}

func (NumericalResponseXML) tag() string { return "numericalresponse" }

type ResponseParam struct {
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr"`
}

// Tolerance returns the declared tolerance parameter, or def when absent.
func toleranceParam(params []ResponseParam, def string) string {
	for _, p := range params {
		if p.Type == "tolerance" && p.Default != "" {
			return p.Default
		}
	}
	return def
}

type FormulaResponseXML struct {
	responseAttrs
	Answer  string          `xml:"answer,attr"`
	Samples string          `xml:"samples,attr"`
	Label   string          `xml:"label"`
	Params  []ResponseParam `xml:"responseparam"`
}

func (FormulaResponseXML) tag() string { return "formularesponse" }

type StringResponseXML struct {
	responseAttrs
	Answer     string             `xml:"answer,attr"`
	Type       string             `xml:"type,attr"`
	Label      string             `xml:"label"`
	Additional []AdditionalAnswer `xml:"additional_answer"`
}

func (StringResponseXML) tag() string { return "stringresponse" }

// Answers returns the primary answer plus any additional_answer entries.
func (r StringResponseXML) Answers() []string {
	out := []string{r.Answer}
	for _, a := range r.Additional {
		if a.Answer != "" {
			out = append(out, a.Answer)
		} else if strings.TrimSpace(a.Text) != "" {
			out = append(out, strings.TrimSpace(a.Text))
		}
	}
	return out
}

type AdditionalAnswer struct {
	Answer string `xml:"answer,attr"`
	Text   string `xml:",chardata"`
}

type CustomResponseXML struct {
	responseAttrs
	Expect string `xml:"expect,attr"`
	Label  string `xml:"label"`
	Script Script `xml:"script"`
}

func (CustomResponseXML) tag() string { return "customresponse" }

// ParseProblem decodes problem XML, keeping responses in document order.
func ParseProblem(raw string) (*Problem, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode problem: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = se
			break
		}
	}
	if root.Name.Local != "problem" {
		return nil, fmt.Errorf("decode problem: root element is %q, want problem", root.Name.Local)
	}

	p := &Problem{}
	for _, a := range root.Attr {
		if a.Name.Local == "display_name" {
			p.DisplayName = a.Value
		}
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode problem: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if err := p.decodeChild(dec, se); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Problem) decodeChild(dec *xml.Decoder, se xml.StartElement) error {
	var (
		resp ResponseXML
		err  error
	)
	switch se.Name.Local {
	case "script":
		var s Script
		if err = dec.DecodeElement(&s, &se); err == nil {
			p.Scripts = append(p.Scripts, s)
		}
		return err
	case "multiplechoiceresponse":
		var r MultipleChoiceResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	case "optionresponse":
		var r OptionResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	case "numericalresponse":
		var r NumericalResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	case "formularesponse":
		var r FormulaResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	case "stringresponse":
		var r StringResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	case "customresponse":
		var r CustomResponseXML
		err = dec.DecodeElement(&r, &se)
		resp = r
	default:
		// Prose markup (p, label, h2, ...) is presentation, skipped here.
		return dec.Skip()
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", se.Name.Local, err)
	}
	p.Responses = append(p.Responses, resp)
	return nil
}

func responsePoints(r ResponseXML) (float64, error) {
	raw := r.points()
	if raw == "" {
		return 1, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s: invalid points %q", r.tag(), raw)
	}
	return v, nil
}
