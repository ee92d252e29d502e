package geoz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects the family of a parameter record.
type Kind int

const (
	KindEllipsoid Kind = iota
	KindDatum
)

func (k Kind) String() string {
	switch k {
	case KindEllipsoid:
		return "ellipsoid"
	case KindDatum:
		return "datum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source supplies named parameter records to operator constructors.
// Implementations may block (files, network); lookups only happen while a
// pipeline is being built.
type Source interface {
	Lookup(ctx context.Context, kind Kind, name Name) (Record, error)
}

// Record is a flat set of named values as delivered by a Source. Values
// may be numbers, strings, booleans or lists of numbers.
type Record map[string]any

// Float reads key as a number. Numeric strings are accepted.
func (r Record) Float(key string) (float64, bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, true, &ConstructionError{Err: ErrInvalidParameter, Parameter: key, Value: fmt.Sprint(v), Step: -1}
	}
	return f, true, nil
}

// Text reads key as a string.
func (r Record) Text(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Series reads key as a list of numbers. Both YAML sequences and comma
// separated strings are accepted.
func (r Record) Series(key string) ([]float64, bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	bad := &ConstructionError{Err: ErrInvalidParameter, Parameter: key, Value: fmt.Sprint(v), Step: -1}
	switch s := v.(type) {
	case []float64:
		return s, true, nil
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, err := toFloat(item)
			if err != nil {
				return nil, true, bad
			}
			out[i] = f
		}
		return out, true, nil
	case string:
		out, err := parseSeries(s)
		if err != nil {
			return nil, true, bad
		}
		return out, true, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, true, bad
		}
		return []float64{f}, true, nil
	}
}

// checkKeys rejects any key outside allowed. Keys are reported in
// sorted order so the error is stable.
func (r Record) checkKeys(allowed func(string) bool) error {
	var unknown []string
	for k := range r {
		if !allowed(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return &ConstructionError{Err: ErrInvalidParameter, Parameter: unknown[0], Value: "unknown key", Step: -1}
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
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return math.NaN(), fmt.Errorf("not a number: %T", v)
	}
}

func parseSeries(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func missingResource(kind Kind, name Name) error {
	return fmt.Errorf("%w: %s %q", ErrMissingResource, kind, name)
}

// MapSource is an in-memory Source.
type MapSource map[Kind]map[Name]Record

// Lookup implements Source.
func (m MapSource) Lookup(_ context.Context, kind Kind, name Name) (Record, error) {
	if r, ok := m[kind][name]; ok {
		return r, nil
	}
	return nil, missingResource(kind, name)
}

// Builtins returns the records compiled into the package: the common
// ellipsoids and a handful of Helmert datums.
func Builtins() Source {
	return MapSource{
		KindEllipsoid: builtinEllipsoids,
		KindDatum:     builtinDatums,
	}
}

type yamlDocument struct {
	Ellipsoids map[Name]Record `yaml:"ellipsoids"`
	Datums     map[Name]Record `yaml:"datums"`
}

// YAMLSource parses a document of the form
//
//	ellipsoids:
//	  mine: {a: 6378000, rf: 300}
//	datums:
//	  local: {ellps: mine, x: 10, y: -5, z: 3}
//
// Documents are read with YAML 1.2 scalars, so keys such as y or n stay
// strings. Every record is validated before the source is returned.
func YAMLSource(data []byte) (MapSource, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	src := MapSource{KindEllipsoid: doc.Ellipsoids, KindDatum: doc.Datums}
	for name, r := range doc.Ellipsoids {
		if _, err := EllipsoidFromRecord(r); err != nil {
			return nil, fmt.Errorf("ellipsoid %q: %w", name, err)
		}
	}
	for name, r := range doc.Datums {
		if _, err := DatumFromRecord(name, r); err != nil {
			return nil, fmt.Errorf("datum %q: %w", name, err)
		}
	}
	return src, nil
}

// ReadYAMLSource reads and parses a YAML record document.
func ReadYAMLSource(r io.Reader) (MapSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return YAMLSource(data)
}

type chain []Source

func (c chain) Lookup(ctx context.Context, kind Kind, name Name) (Record, error) {
	for _, s := range c {
		r, err := s.Lookup(ctx, kind, name)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrMissingResource) {
			return nil, err
		}
	}
	return nil, missingResource(kind, name)
}

// Sources consults each source in turn and returns the first hit. Errors
// other than ErrMissingResource stop the search.
func Sources(sources ...Source) Source {
	return chain(sources)
}
