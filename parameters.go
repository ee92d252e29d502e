package geoz

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Parameters gives a constructor typed access to the parameters of one
// step. Values given on the step take precedence over pipeline globals.
// Every read marks the key as used so leftovers can be reported.
type Parameters struct {
	ctx     context.Context
	source  Source
	globals map[string]string
	values  map[string]string
	used    map[string]bool
	op      Name
	order   []string
	step    int
}

// NewParameters prepares parameters for the operator op. A nil source
// falls back to Builtins.
func NewParameters(ctx context.Context, op Name, params []Param, source Source, globals map[string]string) *Parameters {
	if source == nil {
		source = Builtins()
	}
	p := &Parameters{
		ctx:     ctx,
		source:  source,
		globals: globals,
		values:  make(map[string]string, len(params)),
		used:    make(map[string]bool, len(params)),
		op:      op,
		step:    -1,
	}
	for _, prm := range params {
		if _, dup := p.values[prm.Key]; !dup {
			p.order = append(p.order, prm.Key)
		}
		p.values[prm.Key] = prm.Value
	}
	return p
}

// Context returns the context the pipeline is being built under.
func (p *Parameters) Context() context.Context { return p.ctx }

// Operator is the name of the operator being built.
func (p *Parameters) Operator() Name { return p.op }

// Has reports whether key was given on the step itself.
func (p *Parameters) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Unused lists the step's parameters no read has touched, in declaration
// order.
func (p *Parameters) Unused() []string {
	var out []string
	for _, k := range p.order {
		if !p.used[k] {
			out = append(out, k)
		}
	}
	return out
}

func (p *Parameters) lookup(key string) (string, bool) {
	if v, ok := p.values[key]; ok {
		p.used[key] = true
		return v, true
	}
	v, ok := p.globals[key]
	return v, ok
}

// fail builds a construction error attributed to this step.
func (p *Parameters) fail(key, value string, err error) *ConstructionError {
	return &ConstructionError{Err: err, Operator: p.op, Parameter: key, Value: value, Step: p.step}
}

// attribute stamps construction errors coming from helpers with the step
// identity.
func (p *Parameters) attribute(err error) error {
	var ce *ConstructionError
	if errors.As(err, &ce) {
		c := *ce
		if c.Operator == "" {
			c.Operator = p.op
		}
		if c.Step < 0 {
			c.Step = p.step
		}
		return &c
	}
	return p.fail("", "", err)
}

// Text returns the value of key, or def.
func (p *Parameters) Text(key, def string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return def
}

// RequiredText returns the value of key or ErrMissingParameter.
func (p *Parameters) RequiredText(key string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return "", p.fail(key, "", ErrMissingParameter)
	}
	return v, nil
}

// Real returns key as a finite number, or def.
func (p *Parameters) Real(key string, def float64) (float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, p.fail(key, v, ErrInvalidParameter)
	}
	return f, nil
}

// RequiredReal returns key as a finite number or ErrMissingParameter.
func (p *Parameters) RequiredReal(key string) (float64, error) {
	if _, ok := p.lookup(key); !ok {
		return 0, p.fail(key, "", ErrMissingParameter)
	}
	return p.Real(key, 0)
}

// Angle reads key in degrees and returns radians. def is in degrees.
func (p *Parameters) Angle(key string, def float64) (float64, error) {
	v, err := p.Real(key, def)
	if err != nil {
		return 0, err
	}
	return v * deg2rad, nil
}

// Natural returns key as a non-negative integer, or def.
func (p *Parameters) Natural(key string, def int) (int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, p.fail(key, v, ErrInvalidParameter)
	}
	return n, nil
}

// Flag returns key as a boolean. An absent flag is false.
func (p *Parameters) Flag(key string) (bool, error) {
	v, ok := p.lookup(key)
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, p.fail(key, v, ErrInvalidParameter)
	}
	return b, nil
}

// Series returns key as a comma separated list of numbers, or nil.
func (p *Parameters) Series(key string) ([]float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	out, err := parseSeries(v)
	if err != nil {
		return nil, p.fail(key, v, ErrInvalidParameter)
	}
	return out, nil
}

// Positive checks that v, read from key, is strictly positive.
func (p *Parameters) Positive(key string, v float64) error {
	if !(v > 0) {
		return p.fail(key, strconv.FormatFloat(v, 'g', -1, 64), ErrInvalidParameter)
	}
	return nil
}

// Range checks lo <= v <= hi.
func (p *Parameters) Range(key string, v, lo, hi float64) error {
	if !(v >= lo && v <= hi) {
		return p.fail(key, strconv.FormatFloat(v, 'g', -1, 64), ErrInvalidParameter)
	}
	return nil
}

// Conflict reports that keys cannot be given together.
func (p *Parameters) Conflict(keys ...string) error {
	return p.fail(strings.Join(keys, ","), "", ErrConflictingParameters)
}

var shapeKeys = []string{"a", "f", "rf", "b"}

// Ellipsoid resolves the step's ellipsoid: inline a/f/rf/b when given,
// otherwise the record named by ellps, otherwise DefaultEllipsoid.
func (p *Parameters) Ellipsoid() (Ellipsoid, error) {
	inline := Record{}
	for _, k := range shapeKeys {
		if v, ok := p.values[k]; ok {
			p.used[k] = true
			inline[k] = v
		}
	}
	if len(inline) > 0 {
		if p.Has("ellps") {
			return Ellipsoid{}, p.Conflict("ellps", "a")
		}
		e, err := EllipsoidFromRecord(inline)
		if err != nil {
			return Ellipsoid{}, p.attribute(err)
		}
		return e, nil
	}

	name := p.Text("ellps", DefaultEllipsoid)
	rec, err := p.source.Lookup(p.ctx, KindEllipsoid, name)
	if err != nil {
		return Ellipsoid{}, p.fail("ellps", name, err)
	}
	e, err := EllipsoidFromRecord(rec)
	if err != nil {
		return Ellipsoid{}, p.attribute(err)
	}
	return e, nil
}

// Datum resolves the datum named by key through the source, together with
// its ellipsoid.
func (p *Parameters) Datum(key string) (Datum, Ellipsoid, error) {
	name, err := p.RequiredText(key)
	if err != nil {
		return Datum{}, Ellipsoid{}, err
	}
	rec, err := p.source.Lookup(p.ctx, KindDatum, name)
	if err != nil {
		return Datum{}, Ellipsoid{}, p.fail(key, name, err)
	}
	return p.datum(name, rec)
}

// InlineDatum builds a datum from the step's own parameters carrying the
// given prefix, e.g. grid_.
func (p *Parameters) InlineDatum(prefix string) (Datum, Ellipsoid, error) {
	rec := Record{}
	for _, k := range p.order {
		if strings.HasPrefix(k, prefix) {
			p.used[k] = true
			rec[k] = p.values[k]
		}
	}
	if len(rec) == 0 {
		return Datum{}, Ellipsoid{}, p.fail(prefix+"*", "", ErrMissingParameter)
	}
	if v, ok := p.lookup("ellps"); ok {
		rec["ellps"] = v
	}
	return p.datum(p.op, rec)
}

func (p *Parameters) datum(name Name, rec Record) (Datum, Ellipsoid, error) {
	d, err := DatumFromRecord(name, rec)
	if err != nil {
		return Datum{}, Ellipsoid{}, p.attribute(err)
	}
	erec, err := p.source.Lookup(p.ctx, KindEllipsoid, d.Ellipsoid)
	if err != nil {
		return Datum{}, Ellipsoid{}, p.fail("ellps", d.Ellipsoid, err)
	}
	e, err := EllipsoidFromRecord(erec)
	if err != nil {
		return Datum{}, Ellipsoid{}, p.attribute(err)
	}
	return d, e, nil
}
