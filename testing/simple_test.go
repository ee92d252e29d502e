package testing

import (
	"context"
	"testing"

	"github.com/zoobzio/geoz"
)

// Simple test to verify the testing infrastructure works.
func TestSimpleInfrastructure(t *testing.T) {
	ctx := context.Background()

	// Builtin pipeline
	p, err := geoz.NewPipeline(ctx, "cart | cart inv")
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	defer p.Close()

	start := geoz.Geo(55, 12, 100, 0)
	ws := geoz.NewWorkspace(start)
	if err := p.Apply(ws, geoz.Fwd); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	AssertClose(t, start, ws.Coord, 1e-8)

	// Mock inside a macro
	mock := NewMockOperator(t, "shift").WithOffset(geoz.Coord{10, 0, 0, 0})
	reg := geoz.NewRegistry()
	if err := reg.Register("shift", mock.Constructor()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	twice, err := geoz.NewPipeline(ctx, "double", geoz.WithRegistry(reg), geoz.WithMacros(geoz.Macros{
		"double": "shift | shift",
	}))
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	defer twice.Close()

	ws.Reset(geoz.Coord{1, 0, 0, 0})
	if err := twice.Apply(ws, geoz.Fwd); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if ws.Coord[0] != 21 {
		t.Errorf("expected 21, got %v", ws.Coord[0])
	}
	AssertForwardCalls(t, mock, 2)
}

func TestHelpers(t *testing.T) {
	ctx := context.Background()

	// Chaos wrapper with no chaos passes straight through
	chaos := NewChaosOperator("chaos", NewMockOperator(t, "inner").WithOffset(geoz.Coord{0, 1, 0, 0}), ChaosConfig{
		FailureRate: 0.0,
		Seed:        12345,
	})
	reg := geoz.NewRegistry()
	if err := reg.Register("chaos", func(*geoz.Parameters) (geoz.Operator, error) { return chaos, nil }); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	p, err := geoz.NewPipeline(ctx, "chaos", geoz.WithRegistry(reg))
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	defer p.Close()

	AssertRoundTrip(t, p, []geoz.Coord{{1, 2, 3, 4}}, 0)

	stats := chaos.Stats()
	if stats.TotalCalls != 2 {
		t.Errorf("expected 2 calls, got %d", stats.TotalCalls)
	}
}
