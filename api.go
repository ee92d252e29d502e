package geoz

// Name identifies operators, macros and pipelines.
type Name = string

// Direction selects which way a pipeline or operator runs.
type Direction int

const (
	// Fwd runs a pipeline in declared order, each step forward.
	Fwd Direction = iota
	// Inv runs a pipeline in reverse order, each step inverse.
	Inv
)

func (d Direction) String() string {
	if d == Inv {
		return "inv"
	}
	return "fwd"
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Inv {
		return Fwd
	}
	return Inv
}

// Operator is a single named transformation step. Operators are built
// once by a Constructor and must not change afterwards: every piece of
// per-call state lives in the Workspace.
//
// An operator that only makes sense in one direction implements the other
// as identity and reports that through Directional.
type Operator interface {
	Name() Name
	Forward(*Workspace) error
	Inverse(*Workspace) error
}

// Directional is implemented by operators whose inverse is not a true
// inverse of the forward mapping.
type Directional interface {
	Invertible() bool
}

// Constructor builds an operator from validated parameters. Constructors
// must reject missing, out of range or conflicting parameters instead of
// deferring the check to call time.
type Constructor func(*Parameters) (Operator, error)

// run dispatches a workspace to one direction of an operator, turning a
// panic into a domain error.
func run(op Operator, ws *Workspace, dir Direction) (err error) {
	defer recoverFromPanic(&err, op.Name())
	if dir == Inv {
		return op.Inverse(ws)
	}
	return op.Forward(ws)
}

// identity is embedded by operators with a no-op direction.
type identity struct{}

func (identity) Forward(*Workspace) error { return nil }
func (identity) Inverse(*Workspace) error { return nil }
