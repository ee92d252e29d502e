package geoz

// MaxStackDepth bounds the scratch stack of a Workspace.
const MaxStackDepth = 64

// Workspace is the mutable per-call state threaded through a pipeline run:
// the coordinate being transformed, a scratch stack for operators that
// park intermediate values (push, pop, composites), and a status slot
// holding the last domain error.
//
// A Workspace belongs to exactly one call. Pipelines never retain it, so
// any number of workspaces may run against the same Pipeline at once.
type Workspace struct {
	err   *DomainError
	stack []float64
	Coord Coord
}

// NewWorkspace returns a workspace holding c with an empty stack.
func NewWorkspace(c Coord) *Workspace {
	return &Workspace{Coord: c}
}

// Reset prepares the workspace for a new tuple, keeping the stack's
// backing storage.
func (w *Workspace) Reset(c Coord) {
	w.Coord = c
	w.stack = w.stack[:0]
	w.err = nil
}

// Push parks v on the scratch stack.
func (w *Workspace) Push(v float64) error {
	if len(w.stack) >= MaxStackDepth {
		return domainError(ErrStackOverflow, v)
	}
	w.stack = append(w.stack, v)
	return nil
}

// Pop removes and returns the most recently pushed value. Popping an
// empty stack is an error, never a zero value.
func (w *Workspace) Pop() (float64, error) {
	n := len(w.stack)
	if n == 0 {
		return 0, domainError(ErrStackUnderflow, 0)
	}
	v := w.stack[n-1]
	w.stack = w.stack[:n-1]
	return v, nil
}

// Depth is the number of values on the scratch stack.
func (w *Workspace) Depth() int {
	return len(w.stack)
}

// Err returns the domain error recorded by the last run, or nil.
func (w *Workspace) Err() error {
	if w.err == nil {
		return nil
	}
	return w.err
}

func (w *Workspace) fail(err *DomainError) {
	w.err = err
	w.Coord = NaN()
}
