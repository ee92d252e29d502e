// Package testing provides test utilities and helpers for geoz-based
// applications.
//
// This package includes mock operators, round-trip assertions and chaos
// testing tools to make testing geoz pipelines easier.
//
// Example usage:
//
//	func TestMyPipeline(t *testing.T) {
//		mock := geoztest.NewMockOperator(t, "shift").WithOffset(geoz.Coord{1, 2, 0, 0})
//		reg := geoz.NewRegistry()
//		require.NoError(t, reg.Register("shift", mock.Constructor()))
//
//		p, err := geoz.NewPipeline(ctx, "shift | noop", geoz.WithRegistry(reg))
//		require.NoError(t, err)
//		geoztest.AssertRoundTrip(t, p, []geoz.Coord{{0, 0, 0, 0}}, 1e-12)
//		geoztest.AssertForwardCalls(t, mock, 1)
//	}
package testing

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/zoobzio/geoz"
)

// ErrChaos is returned by ChaosOperator for injected failures.
var ErrChaos = errors.New("chaos operator induced failure")

// MockOperator provides a configurable implementation of geoz.Operator.
// It adds a fixed offset going forward and subtracts it going inverse,
// counts calls per direction and can be told to fail or panic.
type MockOperator struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	name        string
	offset      geoz.Coord
	fwdCalls    int64
	invCalls    int64
	returnErr   error
	panicMsg    string
	oneWay      bool
	mu          sync.RWMutex
	callHistory []MockCall
	maxHistory  int
}

// MockCall represents a single call to the mock operator.
type MockCall struct {
	Input     geoz.Coord
	Direction geoz.Direction
	Depth     int
	Timestamp time.Time
}

// NewMockOperator creates a new mock operator for testing.
func NewMockOperator(t *testing.T, name string) *MockOperator {
	return &MockOperator{
		t:          t,
		name:       name,
		maxHistory: 100,
	}
}

// WithOffset configures the offset added by Forward.
func (m *MockOperator) WithOffset(c geoz.Coord) *MockOperator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = c
	return m
}

// WithError configures the mock to fail every call with err, wrapped in
// a domain error.
func (m *MockOperator) WithError(err error) *MockOperator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnErr = err
	return m
}

// WithPanic configures the mock to panic with a specific message.
func (m *MockOperator) WithPanic(msg string) *MockOperator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// OneWay makes the mock report itself as not invertible.
func (m *MockOperator) OneWay() *MockOperator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneWay = true
	return m
}

// Constructor returns a geoz.Constructor handing out this mock, for
// registration in a geoz.Registry.
func (m *MockOperator) Constructor() geoz.Constructor {
	return func(*geoz.Parameters) (geoz.Operator, error) {
		return m, nil
	}
}

// Name returns the name of the mock operator.
func (m *MockOperator) Name() geoz.Name {
	return m.name
}

// Invertible implements geoz.Directional.
func (m *MockOperator) Invertible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.oneWay
}

// Forward implements geoz.Operator.
func (m *MockOperator) Forward(ws *geoz.Workspace) error {
	atomic.AddInt64(&m.fwdCalls, 1)
	return m.call(ws, geoz.Fwd)
}

// Inverse implements geoz.Operator.
func (m *MockOperator) Inverse(ws *geoz.Workspace) error {
	atomic.AddInt64(&m.invCalls, 1)
	return m.call(ws, geoz.Inv)
}

func (m *MockOperator) call(ws *geoz.Workspace, dir geoz.Direction) error {
	m.mu.Lock()
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall{
			Input:     ws.Coord,
			Direction: dir,
			Depth:     ws.Depth(),
			Timestamp: time.Now(),
		})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:]
		}
	}
	offset := m.offset
	returnErr := m.returnErr
	panicMsg := m.panicMsg
	oneWay := m.oneWay
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if returnErr != nil {
		return &geoz.DomainError{Err: returnErr, Value: ws.Coord[0], Step: -1}
	}
	sign := 1.0
	if dir == geoz.Inv {
		if oneWay {
			return nil
		}
		sign = -1
	}
	for i := range ws.Coord {
		ws.Coord[i] += sign * offset[i]
	}
	return nil
}

// ForwardCalls returns the number of Forward calls.
func (m *MockOperator) ForwardCalls() int {
	return int(atomic.LoadInt64(&m.fwdCalls))
}

// InverseCalls returns the number of Inverse calls.
func (m *MockOperator) InverseCalls() int {
	return int(atomic.LoadInt64(&m.invCalls))
}

// CallHistory returns a copy of all recorded calls.
func (m *MockOperator) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]MockCall, len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// Reset clears all call tracking.
func (m *MockOperator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.fwdCalls, 0)
	atomic.StoreInt64(&m.invCalls, 0)
	m.callHistory = nil
}

// Assertion Helpers

// AssertForwardCalls verifies that Forward was called exactly n times.
func AssertForwardCalls(t *testing.T, mock *MockOperator, expected int) {
	t.Helper()
	if got := mock.ForwardCalls(); got != expected {
		t.Errorf("expected mock operator %s to run forward %d times, but it ran %d times",
			mock.name, expected, got)
	}
}

// AssertInverseCalls verifies that Inverse was called exactly n times.
func AssertInverseCalls(t *testing.T, mock *MockOperator, expected int) {
	t.Helper()
	if got := mock.InverseCalls(); got != expected {
		t.Errorf("expected mock operator %s to run inverse %d times, but it ran %d times",
			mock.name, expected, got)
	}
}

// AssertNotCalled verifies that the mock never ran in either direction.
func AssertNotCalled(t *testing.T, mock *MockOperator) {
	t.Helper()
	AssertForwardCalls(t, mock, 0)
	AssertInverseCalls(t, mock, 0)
}

// AssertClose verifies that the first three elements of got are within
// tol of want.
func AssertClose(t *testing.T, want, got geoz.Coord, tol float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if math.IsNaN(got[i]) || math.Abs(want[i]-got[i]) > tol {
			t.Errorf("element %d: expected %.12g, got %.12g (tolerance %g)", i, want[i], got[i], tol)
		}
	}
}

// AssertRoundTrip runs every coordinate forward and back through p and
// verifies it returns within tol of where it started.
func AssertRoundTrip(t *testing.T, p *geoz.Pipeline, coords []geoz.Coord, tol float64) {
	t.Helper()
	ws := geoz.NewWorkspace(geoz.Coord{})
	for _, c := range coords {
		ws.Reset(c)
		if err := p.Apply(ws, geoz.Fwd); err != nil {
			t.Errorf("forward %v: %v", c, err)
			continue
		}
		if err := p.Apply(ws, geoz.Inv); err != nil {
			t.Errorf("inverse of %v: %v", c, err)
			continue
		}
		AssertClose(t, c, ws.Coord, tol)
	}
}

// ChaosOperator wraps another operator and randomly fails or panics.
type ChaosOperator struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	name        string
	wrapped     geoz.Operator
	failureRate float64
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	totalCalls  int64
	failedCalls int64
	panicCalls  int64
}

// ChaosConfig holds configuration for chaos testing.
type ChaosConfig struct {
	FailureRate float64 // Probability of returning a domain error (0.0 to 1.0)
	PanicRate   float64 // Probability of panicking (0.0 to 1.0)
	Seed        int64   // Random seed for reproducible chaos (0 for random seed)
}

// NewChaosOperator creates a chaos operator that wraps another operator.
func NewChaosOperator(name string, wrapped geoz.Operator, config ChaosConfig) *ChaosOperator {
	seed := config.Seed
	if seed == 0 {
		var seedBytes [8]byte
		if _, err := rand.Read(seedBytes[:]); err != nil {
			seed = time.Now().UnixNano()
		} else {
			seed = int64(binary.BigEndian.Uint64(seedBytes[:])) //nolint:gosec // G115: any bit pattern is a valid seed
		}
	}
	return &ChaosOperator{
		name:        name,
		wrapped:     wrapped,
		failureRate: config.FailureRate,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: Test utility uses weak RNG for deterministic chaos scenarios
	}
}

// Name returns the name of the chaos operator.
func (c *ChaosOperator) Name() geoz.Name {
	return c.name
}

// Forward implements geoz.Operator with chaos injection.
func (c *ChaosOperator) Forward(ws *geoz.Workspace) error {
	if err := c.roll(ws); err != nil {
		return err
	}
	return c.wrapped.Forward(ws)
}

// Inverse implements geoz.Operator with chaos injection.
func (c *ChaosOperator) Inverse(ws *geoz.Workspace) error {
	if err := c.roll(ws); err != nil {
		return err
	}
	return c.wrapped.Inverse(ws)
}

func (c *ChaosOperator) roll(ws *geoz.Workspace) error {
	atomic.AddInt64(&c.totalCalls, 1)
	c.mu.Lock()
	doPanic := c.rng.Float64() < c.panicRate
	doFail := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if doPanic {
		atomic.AddInt64(&c.panicCalls, 1)
		panic("chaos operator induced panic")
	}
	if doFail {
		atomic.AddInt64(&c.failedCalls, 1)
		return &geoz.DomainError{Err: ErrChaos, Value: ws.Coord[0], Step: -1}
	}
	return nil
}

// Stats returns statistics about chaos injection.
func (c *ChaosOperator) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:  atomic.LoadInt64(&c.totalCalls),
		FailedCalls: atomic.LoadInt64(&c.failedCalls),
		PanicCalls:  atomic.LoadInt64(&c.panicCalls),
	}
}

// ChaosStats holds statistics about chaos injection.
type ChaosStats struct {
	TotalCalls  int64
	FailedCalls int64
	PanicCalls  int64
}

// FailureRate returns the actual failure rate observed.
func (s ChaosStats) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.FailedCalls) / float64(s.TotalCalls)
}

// PanicRate returns the actual panic rate observed.
func (s ChaosStats) PanicRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.PanicCalls) / float64(s.TotalCalls)
}

// String returns a human-readable representation of the stats.
func (s ChaosStats) String() string {
	return fmt.Sprintf("ChaosStats{Total: %d, Failed: %d (%.1f%%), Panics: %d (%.1f%%)}",
		s.TotalCalls, s.FailedCalls, s.FailureRate()*100,
		s.PanicCalls, s.PanicRate()*100)
}

// Helper Functions

// ParallelTest runs a test function in parallel with multiple goroutines.
// Useful for checking that a pipeline can be shared between callers. A
// panic in any goroutine is re-raised once all of them have finished.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg conc.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Go(func() {
			testFunc(i)
		})
	}
	wg.Wait()
}
