package geoz

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func expandText(t *testing.T, definition string, macros Macros) ([]Spec, error) {
	t.Helper()
	specs, err := Parse(definition)
	require.NoError(t, err)
	return Expand(specs, macros)
}

func TestExpand(t *testing.T) {
	t.Run("Without Macros", func(t *testing.T) {
		specs, err := expandText(t, "a | b k=1", nil)
		require.NoError(t, err)
		require.Equal(t, "a | b k=1", Definition(specs))
	})

	t.Run("Substitutes References", func(t *testing.T) {
		macros := Macros{"zoned": "utm zone=$z | noop"}
		specs, err := expandText(t, "zoned z=33", macros)
		require.NoError(t, err)
		require.Equal(t, "utm zone=33 | noop", Definition(specs))
	})

	t.Run("Missing Reference", func(t *testing.T) {
		macros := Macros{"zoned": "utm zone=$z"}
		_, err := expandText(t, "zoned", macros)
		if !errors.Is(err, ErrMissingParameter) {
			t.Fatalf("expected ErrMissingParameter, got %v", err)
		}
		var ce *ConstructionError
		require.True(t, errors.As(err, &ce))
		require.Equal(t, "zoned", ce.Operator)
		require.Equal(t, "z", ce.Parameter)
	})

	t.Run("Site Parameters Override Body Parameters", func(t *testing.T) {
		macros := Macros{"m": "a k=1 j=2 | b k=3"}
		specs, err := expandText(t, "m k=9 extra=4", macros)
		require.NoError(t, err)
		// Only parameters the body already names are overridden.
		require.Equal(t, "a k=9 j=2 | b k=9", Definition(specs))
	})

	t.Run("Inversion Reverses And Swaps", func(t *testing.T) {
		macros := Macros{"m": "a | b inv omit_fwd | c"}
		specs, err := expandText(t, "m inv", macros)
		require.NoError(t, err)
		want := []Spec{
			{Name: "c", Inverted: true},
			{Name: "b", OmitInverse: true},
			{Name: "a", Inverted: true},
		}
		if diff := cmp.Diff(want, specs); diff != "" {
			t.Errorf("expansion mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Omit Flags Propagate", func(t *testing.T) {
		macros := Macros{"m": "a | b"}
		specs, err := expandText(t, "m omit_inv", macros)
		require.NoError(t, err)
		for _, s := range specs {
			require.True(t, s.OmitInverse)
			require.False(t, s.OmitForward)
		}
	})

	t.Run("Groups Behave Like Anonymous Macros", func(t *testing.T) {
		specs, err := expandText(t, "x | [a | b] inv | y", nil)
		require.NoError(t, err)
		require.Equal(t, "x | b inv | a inv | y", Definition(specs))
	})

	t.Run("Nested Macros", func(t *testing.T) {
		macros := Macros{
			"inner": "p v=$v",
			"outer": "inner v=$w | q",
		}
		specs, err := expandText(t, "outer w=7 inv", macros)
		require.NoError(t, err)
		require.Equal(t, "q inv | p v=7 inv", Definition(specs))
	})

	t.Run("Same Macro Twice Is Not A Cycle", func(t *testing.T) {
		macros := Macros{"m": "a", "twice": "m | m"}
		specs, err := expandText(t, "twice | m", macros)
		require.NoError(t, err)
		require.Len(t, specs, 3)
	})

	t.Run("Cycles", func(t *testing.T) {
		macros := Macros{"a": "x | b", "b": "c", "c": "a"}
		_, err := expandText(t, "a", macros)
		if !errors.Is(err, ErrCyclicMacro) {
			t.Fatalf("expected ErrCyclicMacro, got %v", err)
		}
		var ce *CycleError
		require.True(t, errors.As(err, &ce))
		require.Equal(t, []Name{"a", "b", "c", "a"}, ce.Path)
	})

	t.Run("Step Limit", func(t *testing.T) {
		// Each level doubles the one below it: 2^13 steps in total.
		macros := Macros{}
		for i := 'a'; i < 'm'; i++ {
			next := string(i + 1)
			macros[string(i)] = next + " " + next
		}
		macros["m"] = "noop noop"
		_, err := expandText(t, "a", macros)
		require.ErrorIs(t, err, ErrTooManySteps)
		var ce *ConstructionError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, "4096", ce.Value)

		macros["d"] = "noop"
		specs, err := expandText(t, "a", macros)
		require.NoError(t, err)
		require.Len(t, specs, 8)
	})

	t.Run("Self Reference", func(t *testing.T) {
		_, err := expandText(t, "loop", Macros{"loop": "loop"})
		require.ErrorIs(t, err, ErrCyclicMacro)
	})

	t.Run("Broken Macro Names Itself", func(t *testing.T) {
		_, err := expandText(t, "ok | broken", Macros{"broken": "a | | b"})
		var se *SyntaxError
		require.True(t, errors.As(err, &se))
		require.Equal(t, "broken", se.Macro)
		require.Equal(t, 1, se.Clause)
	})

	t.Run("Unused Broken Macro Is Harmless", func(t *testing.T) {
		_, err := expandText(t, "a", Macros{"broken": "[["})
		require.NoError(t, err)
	})

	t.Run("Leftover References", func(t *testing.T) {
		_, err := expandText(t, "a k=$x", nil)
		require.ErrorIs(t, err, ErrMissingParameter)
	})

	t.Run("Does Not Modify Input", func(t *testing.T) {
		specs, err := Parse("m z=1 inv")
		require.NoError(t, err)
		before := Definition(specs)
		_, err = Expand(specs, Macros{"m": "a k=$z | b"})
		require.NoError(t, err)
		require.Equal(t, before, Definition(specs))
	})
}
