package geoz

import (
	"strings"
	"unicode"
)

// Param is a single key=value assignment.
type Param struct {
	Key   string
	Value string
}

// Spec is a parsed, unresolved step: the operator or macro name, its
// parameters in declaration order and its modifiers. A bracketed group
// has an empty Name and carries its steps in Group.
type Spec struct {
	Name        Name
	Params      []Param
	Group       []Spec
	Inverted    bool
	OmitForward bool
	OmitInverse bool
}

// Param returns the value assigned to key.
func (s Spec) Param(key string) (string, bool) {
	for _, p := range s.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// IsGroup reports whether the spec is a bracketed group.
func (s Spec) IsGroup() bool {
	return s.Group != nil
}

func (s Spec) clone() Spec {
	c := s
	c.Params = append([]Param(nil), s.Params...)
	if s.Group != nil {
		c.Group = make([]Spec, len(s.Group))
		for i, g := range s.Group {
			c.Group[i] = g.clone()
		}
	}
	return c
}

func (s *Spec) setParam(key, value string) {
	for i := range s.Params {
		if s.Params[i].Key == key {
			s.Params[i].Value = value
			return
		}
	}
	s.Params = append(s.Params, Param{Key: key, Value: value})
}

// String renders the spec in canonical definition syntax.
func (s Spec) String() string {
	var b strings.Builder
	if s.Group != nil {
		b.WriteString("[")
		b.WriteString(Definition(s.Group))
		b.WriteString("]")
	} else {
		b.WriteString(s.Name)
	}
	for _, p := range s.Params {
		b.WriteString(" ")
		b.WriteString(p.Key)
		b.WriteString("=")
		b.WriteString(p.Value)
	}
	if s.Inverted {
		b.WriteString(" inv")
	}
	if s.OmitForward {
		b.WriteString(" omit_fwd")
	}
	if s.OmitInverse {
		b.WriteString(" omit_inv")
	}
	return b.String()
}

// Definition renders steps as a canonical pipeline definition. Parsing
// the result yields specs equal to the input.
func Definition(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, " | ")
}

// Step modifiers.
const (
	modInv     = "inv"
	modOmitFwd = "omit_fwd"
	modOmitInv = "omit_inv"
)

var modifiers = map[string]func(*Spec){
	modInv:     func(s *Spec) { s.Inverted = !s.Inverted },
	modOmitFwd: func(s *Spec) { s.OmitForward = true },
	modOmitInv: func(s *Spec) { s.OmitInverse = true },
	"fwd_omit": func(s *Spec) { s.OmitForward = true },
	"inv_omit": func(s *Spec) { s.OmitInverse = true },
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPipe
	tokOpen
	tokClose
)

type token struct {
	text string
	kind tokenKind
}

// Parse turns a definition into specs. Either the whole text parses or
// a *SyntaxError naming the offending clause is returned.
func Parse(definition string) ([]Spec, error) {
	p := &parser{toks: tokenize(definition)}
	if len(p.toks) == 0 {
		return nil, &SyntaxError{Reason: "empty definition"}
	}
	specs, err := p.definition(0)
	if err != nil {
		return nil, err
	}
	return specs, nil
}

func tokenize(text string) []token {
	var clean strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		clean.WriteString(line)
		clean.WriteByte(' ')
	}

	var toks []token
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, token{kind: tokWord, text: word.String()})
			word.Reset()
		}
	}
	src := []rune(clean.String())
	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case unicode.IsSpace(r):
			// Spaces around '=' belong to the assignment.
			if next := nextNonSpace(src, i); next < len(src) && src[next] == '=' && word.Len() > 0 {
				i = next - 1
				continue
			}
			flush()
		case r == '=':
			word.WriteRune(r)
			if next := nextNonSpace(src, i); next > i+1 && next < len(src) && !isSeparator(src[next]) {
				i = next - 1
			}
		case r == '|':
			flush()
			toks = append(toks, token{kind: tokPipe, text: "|"})
		case r == '[':
			flush()
			toks = append(toks, token{kind: tokOpen, text: "["})
		case r == ']':
			flush()
			toks = append(toks, token{kind: tokClose, text: "]"})
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return toks
}

func nextNonSpace(src []rune, i int) int {
	j := i + 1
	for j < len(src) && unicode.IsSpace(src[j]) {
		j++
	}
	return j
}

func isSeparator(r rune) bool {
	return r == '|' || r == '[' || r == ']' || r == '='
}

type parser struct {
	toks   []token
	pos    int
	clause int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) fail(text, reason string) error {
	return &SyntaxError{Clause: p.clause, Text: text, Reason: reason}
}

func (p *parser) definition(depth int) ([]Spec, error) {
	var specs []Spec
	for {
		clause, err := p.parseClause(depth)
		if err != nil {
			return nil, err
		}
		if len(clause) == 0 {
			return nil, p.fail("", "empty clause")
		}
		specs = append(specs, clause...)

		tok, ok := p.peek()
		switch {
		case !ok:
			if depth > 0 {
				return nil, p.fail("", "unterminated '['")
			}
			return specs, nil
		case tok.kind == tokPipe:
			p.pos++
			if depth == 0 {
				p.clause++
			}
		case tok.kind == tokClose:
			if depth == 0 {
				return nil, p.fail("]", "unbalanced ']'")
			}
			return specs, nil
		}
	}
}

func (p *parser) parseClause(depth int) ([]Spec, error) {
	var specs []Spec
	current := func() *Spec {
		if len(specs) == 0 {
			return nil
		}
		return &specs[len(specs)-1]
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind == tokPipe || tok.kind == tokClose {
			return specs, nil
		}
		p.pos++

		if tok.kind == tokOpen {
			group, err := p.definition(depth + 1)
			if err != nil {
				return nil, err
			}
			// definition only returns at depth > 0 on a closing bracket.
			p.pos++
			specs = append(specs, Spec{Group: group})
			continue
		}

		word := tok.text
		if mod, ok := modifiers[word]; ok {
			s := current()
			if s == nil {
				return nil, p.fail(word, "modifier before operator name")
			}
			mod(s)
			continue
		}

		if strings.Contains(word, "=") {
			key, value, _ := strings.Cut(word, "=")
			switch {
			case key == "":
				return nil, p.fail(word, "missing parameter name")
			case value == "":
				return nil, p.fail(word, "missing parameter value")
			case strings.Contains(value, "="):
				return nil, p.fail(word, "malformed parameter")
			}
			s := current()
			if s == nil {
				return nil, p.fail(word, "parameter before operator name")
			}
			if _, dup := s.Param(key); dup {
				return nil, p.fail(word, "duplicate parameter")
			}
			s.Params = append(s.Params, Param{Key: key, Value: value})
			continue
		}

		if strings.HasPrefix(word, "$") {
			return nil, p.fail(word, "parameter reference used as operator name")
		}
		specs = append(specs, Spec{Name: word})
	}
}
