package geoz

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps operator names to constructors. It is safe for
// concurrent use; pipelines only consult it while being built.
type Registry struct {
	ctors map[Name]Constructor
	mu    sync.RWMutex
}

// NewRegistry returns a registry holding the built-in operators.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[Name]Constructor, len(builtins))}
	for name, ctor := range builtins {
		r.ctors[name] = ctor
	}
	return r
}

// Register adds an operator. Names are unique; replacing a built-in is
// not allowed.
func (r *Registry) Register(name Name, ctor Constructor) error {
	if name == "" || ctor == nil {
		return &ConstructionError{Err: ErrInvalidParameter, Operator: name, Step: -1}
	}
	if _, isMod := modifiers[name]; isMod {
		return &ConstructionError{Err: ErrInvalidParameter, Operator: name, Value: "reserved word", Step: -1}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		return &ConstructionError{Err: ErrDuplicateOperator, Operator: name, Step: -1}
	}
	r.ctors[name] = ctor
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Lookup returns the constructor registered under name.
func (r *Registry) Lookup(name Name) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[name]
	return c, ok
}

// Names lists the registered operators in sorted order.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Composite turns a built pipeline into a constructor, so a whole
// pipeline can be registered and used as a single step. The composite
// takes no parameters.
func Composite(p *Pipeline) Constructor {
	return func(params *Parameters) (Operator, error) {
		return &composite{name: params.Operator(), pipeline: p}, nil
	}
}

type composite struct {
	pipeline *Pipeline
	name     Name
}

func (c *composite) Name() Name { return c.name }

func (c *composite) Forward(ws *Workspace) error {
	return c.pipeline.apply(ws, Fwd)
}

func (c *composite) Inverse(ws *Workspace) error {
	return c.pipeline.apply(ws, Inv)
}

func (c *composite) String() string {
	return fmt.Sprintf("%s(%s)", c.name, c.pipeline.Name())
}

var builtins = map[Name]Constructor{
	"noop":        newNoop,
	"cart":        newCart,
	"helmert":     newHelmert,
	"tmerc":       newTmerc,
	"utm":         newUtm,
	"merc":        newMerc,
	"laea":        newLaea,
	"unitconvert": newUnitconvert,
	"axisswap":    newAxisswap,
	"push":        newPush,
	"pop":         newPop,
	"gridshift":   newGridshift,
	"latitude":    newLatitude,
}
