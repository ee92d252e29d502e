package geoz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Syntax errors.
var (
	ErrSyntax = errors.New("syntax error")
)

// Construction errors.
var (
	ErrUnknownOperator       = errors.New("unknown operator")
	ErrMissingParameter      = errors.New("missing required parameter")
	ErrInvalidParameter      = errors.New("invalid parameter value")
	ErrConflictingParameters = errors.New("conflicting parameters")
	ErrCyclicMacro           = errors.New("cyclic macro definition")
	ErrDuplicateOperator     = errors.New("operator already registered")
	ErrMacroShadowsOperator  = errors.New("macro name shadows a registered operator")
	ErrMissingResource       = errors.New("missing parameter resource")
	ErrTooManySteps          = errors.New("expanded pipeline exceeds the step limit")
)

// Domain errors. These are reported per coordinate and never abort a batch.
var (
	ErrOutOfDomain    = errors.New("coordinate outside operator domain")
	ErrNoConvergence  = errors.New("iteration did not converge")
	ErrStackUnderflow = errors.New("scratch stack underflow")
	ErrStackOverflow  = errors.New("scratch stack overflow")
	ErrPanic          = errors.New("operator panicked")
)

// SyntaxError reports malformed definition text. Clause is the zero-based
// index of the pipe-separated clause that failed to parse.
type SyntaxError struct {
	Macro  string // Set when the text came from a macro definition
	Text   string
	Reason string
	Clause int
}

func (e *SyntaxError) Error() string {
	where := fmt.Sprintf("clause %d", e.Clause)
	if e.Macro != "" {
		where = fmt.Sprintf("macro %q, %s", e.Macro, where)
	}
	if e.Text == "" {
		return fmt.Sprintf("%s: %s: %s", ErrSyntax, where, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%q): %s", ErrSyntax, where, e.Text, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// ConstructionError reports a failure to turn a resolved step into an
// operator: unknown names, missing or invalid parameters, missing
// resources. Step is the index in the expanded pipeline, or -1 when the
// failure is not tied to a single step.
type ConstructionError struct {
	Err       error
	Operator  Name
	Parameter string
	Value     string
	Step      int
}

func (e *ConstructionError) Error() string {
	var b strings.Builder
	if e.Step >= 0 {
		fmt.Fprintf(&b, "step %d ", e.Step)
	}
	if e.Operator != "" {
		fmt.Fprintf(&b, "%q", e.Operator)
	}
	if e.Parameter != "" {
		fmt.Fprintf(&b, " parameter %q", e.Parameter)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " = %q", e.Value)
	}
	return fmt.Sprintf("%s: %v", strings.TrimSpace(b.String()), e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// CycleError reports a macro that references itself, directly or through
// other macros. Path lists the macro names in expansion order, ending
// with the name that closed the cycle.
type CycleError struct {
	Path []Name
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicMacro, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicMacro
}

// DomainError reports a per-coordinate failure. It carries the identity of
// the failing operator, the step it occupies, the offending value and the
// tuple as it was handed to the pipeline.
type DomainError struct {
	Timestamp time.Time
	Err       error
	Pipeline  Name
	Operator  Name
	Input     Coord
	Value     float64
	Step      int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("pipeline %q step %d %q: value %g: %v", e.Pipeline, e.Step, e.Operator, e.Value, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// domainError is the operator-side shorthand. The executor fills in the
// pipeline, step and input fields.
func domainError(err error, value float64) error {
	return &DomainError{Err: err, Value: value, Step: -1}
}

// recoverFromPanic turns a panicking operator into a domain error so a
// single bad tuple cannot take down a batch.
func recoverFromPanic(err *error, op Name) {
	if r := recover(); r != nil {
		*err = &DomainError{
			Err:      fmt.Errorf("%w: %v", ErrPanic, r),
			Operator: op,
			Step:     -1,
		}
	}
}
