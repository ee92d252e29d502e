package geoz

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// MaxExpandedSteps bounds the number of operator steps a definition may
// expand to.
const MaxExpandedSteps = 4096

// Macros maps macro names to definition text. Definitions are parsed when
// first used, so a broken macro only matters to pipelines that use it.
type Macros map[Name]string

// Expand replaces every macro invocation and bracketed group in specs by
// the steps it stands for, recursively, until only operator steps remain.
// It does not modify its input.
func Expand(specs []Spec, macros Macros) ([]Spec, error) {
	out, err := expand(specs, macros, nil)
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		for _, p := range s.Params {
			if key, ok := reference(p.Value); ok {
				return nil, &ConstructionError{Err: ErrMissingParameter, Operator: s.Name, Parameter: key, Value: p.Value, Step: -1}
			}
		}
	}
	return out, nil
}

// expand works depth first. path holds the macros currently being
// expanded and is never shared between siblings.
func expand(specs []Spec, macros Macros, path []Name) ([]Spec, error) {
	var out []Spec
	for _, s := range specs {
		var body []Spec
		switch {
		case s.IsGroup():
			b, err := expand(s.Group, macros, path)
			if err != nil {
				return nil, err
			}
			body = b
		default:
			def, ok := macros[s.Name]
			if !ok {
				out = append(out, s.clone())
				if len(out) > MaxExpandedSteps {
					return nil, tooManySteps(s)
				}
				continue
			}
			if slices.Contains(path, s.Name) {
				return nil, &CycleError{Path: append(slices.Clone(path), s.Name)}
			}
			parsed, err := Parse(def)
			if err != nil {
				var se *SyntaxError
				if errors.As(err, &se) && se.Macro == "" {
					se.Macro = s.Name
				}
				return nil, err
			}
			b, err := expand(parsed, macros, append(slices.Clone(path), s.Name))
			if err != nil {
				return nil, err
			}
			body = b
		}

		body, err := bind(body, s)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
		if len(out) > MaxExpandedSteps {
			return nil, tooManySteps(s)
		}
	}
	return out, nil
}

// bind applies an invocation to the expanded body of a macro or group:
// site parameters, inversion and omit flags.
func bind(body []Spec, site Spec) ([]Spec, error) {
	for i := range body {
		step := &body[i]
		for j, p := range step.Params {
			key, ok := reference(p.Value)
			if !ok {
				continue
			}
			v, found := site.Param(key)
			if !found {
				return nil, &ConstructionError{
					Err:       ErrMissingParameter,
					Operator:  macroLabel(site),
					Parameter: key,
					Value:     p.Value,
					Step:      -1,
				}
			}
			step.Params[j].Value = v
		}
		for _, p := range site.Params {
			if _, ok := step.Param(p.Key); ok {
				step.setParam(p.Key, p.Value)
			}
		}
	}

	if site.Inverted {
		slices.Reverse(body)
		for i := range body {
			step := &body[i]
			step.Inverted = !step.Inverted
			step.OmitForward, step.OmitInverse = step.OmitInverse, step.OmitForward
		}
	}
	for i := range body {
		body[i].OmitForward = body[i].OmitForward || site.OmitForward
		body[i].OmitInverse = body[i].OmitInverse || site.OmitInverse
	}
	return body, nil
}

// reference reports whether v is a $key reference to a site parameter.
func reference(v string) (string, bool) {
	if len(v) > 1 && strings.HasPrefix(v, "$") {
		return v[1:], true
	}
	return "", false
}

func macroLabel(s Spec) string {
	if s.IsGroup() {
		return "[group]"
	}
	return s.Name
}

func tooManySteps(s Spec) error {
	return &ConstructionError{
		Err:      ErrTooManySteps,
		Operator: macroLabel(s),
		Value:    strconv.Itoa(MaxExpandedSteps),
		Step:     -1,
	}
}
