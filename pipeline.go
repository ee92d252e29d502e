package geoz

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"go.uber.org/zap"
)

// Observability constants for Pipeline.
const (
	// Metrics.
	PipelineProcessedTotal = metricz.Key("pipeline.processed.total")
	PipelineFailuresTotal  = metricz.Key("pipeline.failures.total")
	PipelineBatchSize      = metricz.Key("pipeline.batch.size")
	PipelineDurationMs     = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineTransformSpan = tracez.Key("pipeline.transform")

	// Tags.
	PipelineTagDirection = tracez.Tag("pipeline.direction")
	PipelineTagItems     = tracez.Tag("pipeline.items")
	PipelineTagFailures  = tracez.Tag("pipeline.failures")
	PipelineTagError     = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventDomainError   = hookz.Key("pipeline.domain_error")
	PipelineEventBatchComplete = hookz.Key("pipeline.batch_complete")
)

// DefaultPipelineName is used when WithName is not given.
const DefaultPipelineName = "pipeline"

// PipelineEvent is emitted via hookz when a tuple fails and when a batch
// completes.
type PipelineEvent struct {
	Timestamp time.Time     // When the event occurred
	Err       error         // Domain error (for domain_error)
	Name      Name          // Pipeline name
	Operator  Name          // Failing operator (for domain_error)
	Step      int           // Failing step (for domain_error)
	Direction Direction     // Direction the pipeline ran in
	Items     int           // Batch size (for batch_complete)
	Failures  int           // Failed items (for batch_complete)
	Duration  time.Duration // Batch duration (for batch_complete)
}

// Step is one constructed operator of a pipeline with its flags.
type Step struct {
	Operator    Operator
	Spec        Spec
	Inverted    bool
	OmitForward bool
	OmitInverse bool
}

// skipped reports whether the step is left out when the pipeline runs in
// direction dir.
func (s Step) skipped(dir Direction) bool {
	if dir == Inv {
		return s.OmitInverse
	}
	return s.OmitForward
}

// Pipeline is an immutable, ordered sequence of constructed operators.
// Forward runs the steps in declared order, inverse in reverse order with
// each step inverted. Steps flagged omit_fwd or omit_inv are skipped
// entirely in that direction, and a step's own inv flag flips only that
// step.
//
// A Pipeline holds no per-call state and may be used from any number of
// goroutines at once.
//
// # Observability
//
// Metrics:
//   - pipeline.processed.total: Counter of tuples processed
//   - pipeline.failures.total: Counter of tuples that failed
//   - pipeline.batch.size: Gauge of the last batch size
//   - pipeline.duration.ms: Gauge of the last batch duration
//
// Traces:
//   - pipeline.transform: Span for each batch
//
// Events (via hooks):
//   - pipeline.domain_error: Fired for every failed tuple
//   - pipeline.batch_complete: Fired when a batch finishes
type Pipeline struct {
	clock       clockz.Clock
	logger      *zap.Logger
	metrics     *metricz.Registry
	tracer      *tracez.Tracer
	hooks       *hookz.Hooks[PipelineEvent]
	name        Name
	definition  string
	steps       []Step
	fingerprint uint64
	workers     int
}

type config struct {
	clock    clockz.Clock
	registry *Registry
	source   Source
	logger   *zap.Logger
	macros   Macros
	globals  map[string]string
	name     Name
	workers  int
}

// Option configures NewPipeline.
type Option func(*config)

// WithMacros supplies the macro table consulted for names that are not
// registered operators.
func WithMacros(m Macros) Option {
	return func(c *config) { c.macros = m }
}

// WithRegistry replaces the default registry of built-in operators.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithSource sets where named ellipsoids and datums are looked up.
func WithSource(s Source) Option {
	return func(c *config) { c.source = s }
}

// WithGlobals sets parameter values seen by every step that does not set
// them itself, e.g. ellps.
func WithGlobals(g map[string]string) Option {
	return func(c *config) { c.globals = g }
}

// WithLogger sets the logger used while building the pipeline.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithName names the pipeline in errors, logs and events.
func WithName(name Name) Option {
	return func(c *config) { c.name = name }
}

// WithWorkers bounds the parallelism of Transform.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithClock sets a custom clock for testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// NewPipeline parses, expands and constructs a pipeline. It either
// returns a complete pipeline or an error; a *SyntaxError, *CycleError
// or *ConstructionError tells which stage failed.
func NewPipeline(ctx context.Context, definition string, opts ...Option) (*Pipeline, error) {
	cfg := config{
		clock:   clockz.RealClock,
		logger:  zap.NewNop(),
		name:    DefaultPipelineName,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	if cfg.source == nil {
		cfg.source = Builtins()
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}
	log := cfg.logger.With(zap.String("pipeline", cfg.name))

	names := make([]Name, 0, len(cfg.macros))
	for name := range cfg.macros {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if cfg.registry.Has(name) {
			return nil, &ConstructionError{Err: ErrMacroShadowsOperator, Operator: name, Step: -1}
		}
	}

	specs, err := Parse(definition)
	if err != nil {
		return nil, err
	}
	flat, err := Expand(specs, cfg.macros)
	if err != nil {
		return nil, err
	}
	log.Debug("definition expanded",
		zap.Int("parsed", len(specs)),
		zap.Int("steps", len(flat)),
	)

	steps := make([]Step, len(flat))
	for i, s := range flat {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctor, ok := cfg.registry.Lookup(s.Name)
		if !ok {
			return nil, &ConstructionError{Err: ErrUnknownOperator, Operator: s.Name, Step: i}
		}
		params := NewParameters(ctx, s.Name, s.Params, cfg.source, cfg.globals)
		params.step = i
		op, err := ctor(params)
		if err != nil {
			return nil, params.attribute(err)
		}
		if unused := params.Unused(); len(unused) > 0 {
			log.Warn("unused parameters",
				zap.Int("step", i),
				zap.String("operator", s.Name),
				zap.Strings("parameters", unused),
			)
		}
		steps[i] = Step{
			Operator:    op,
			Spec:        s,
			Inverted:    s.Inverted,
			OmitForward: s.OmitForward,
			OmitInverse: s.OmitInverse,
		}
	}

	canonical := Definition(flat)
	p := &Pipeline{
		clock:       cfg.clock,
		logger:      log,
		metrics:     metricz.New(),
		tracer:      tracez.New(),
		hooks:       hookz.New[PipelineEvent](),
		name:        cfg.name,
		definition:  canonical,
		steps:       steps,
		fingerprint: xxhash.Sum64String(canonical),
		workers:     cfg.workers,
	}
	p.metrics.Counter(PipelineProcessedTotal)
	p.metrics.Counter(PipelineFailuresTotal)
	p.metrics.Gauge(PipelineBatchSize)
	p.metrics.Gauge(PipelineDurationMs)

	log.Debug("pipeline built",
		zap.Int("steps", len(steps)),
		zap.String("definition", canonical),
		zap.String("fingerprint", fmt.Sprintf("%016x", p.fingerprint)),
	)
	return p, nil
}

// Apply runs the pipeline over the tuple held by ws. On failure the tuple
// is set to NaN, the *DomainError is stored in ws and returned.
func (p *Pipeline) Apply(ws *Workspace, dir Direction) error {
	return p.applyOne(context.Background(), ws, dir)
}

func (p *Pipeline) applyOne(ctx context.Context, ws *Workspace, dir Direction) error {
	ws.err = nil
	p.metrics.Counter(PipelineProcessedTotal).Inc()
	err := p.apply(ws, dir)
	if err == nil {
		return nil
	}

	var de *DomainError
	if !errors.As(err, &de) {
		de = &DomainError{Err: err, Pipeline: p.name, Step: -1, Timestamp: p.clock.Now()}
	}
	ws.fail(de)
	p.metrics.Counter(PipelineFailuresTotal).Inc()
	_ = p.hooks.Emit(ctx, PipelineEventDomainError, PipelineEvent{ //nolint:errcheck
		Name:      p.name,
		Operator:  de.Operator,
		Step:      de.Step,
		Direction: dir,
		Err:       de,
		Timestamp: de.Timestamp,
	})
	return de
}

// apply is the bare step loop, shared with composites. It leaves the
// workspace as the failing step left it.
func (p *Pipeline) apply(ws *Workspace, dir Direction) error {
	input := ws.Coord
	n := len(p.steps)
	for k := 0; k < n; k++ {
		i := k
		if dir == Inv {
			i = n - 1 - k
		}
		st := p.steps[i]
		if st.skipped(dir) {
			continue
		}
		eff := dir
		if st.Inverted {
			eff = eff.Opposite()
		}
		if err := run(st.Operator, ws, eff); err != nil {
			return p.stepFailure(err, i, st, input)
		}
	}
	return nil
}

func (p *Pipeline) stepFailure(err error, i int, st Step, input Coord) *DomainError {
	de := &DomainError{
		Timestamp: p.clock.Now(),
		Err:       err,
		Pipeline:  p.name,
		Operator:  st.Operator.Name(),
		Input:     input,
		Step:      i,
	}
	var inner *DomainError
	if errors.As(err, &inner) {
		de.Value = inner.Value
		if inner.Step < 0 {
			de.Err = inner.Err
		}
	}
	return de
}

// Forward transforms coords in place and returns how many succeeded.
// Failed tuples are left as NaN.
func (p *Pipeline) Forward(coords []Coord) int {
	return p.inPlace(coords, Fwd)
}

// Inverse is Forward in the inverse direction.
func (p *Pipeline) Inverse(coords []Coord) int {
	return p.inPlace(coords, Inv)
}

func (p *Pipeline) inPlace(coords []Coord, dir Direction) int {
	ws := NewWorkspace(Coord{})
	ok := 0
	for i := range coords {
		ws.Reset(coords[i])
		if p.Apply(ws, dir) == nil {
			ok++
		}
		coords[i] = ws.Coord
	}
	return ok
}

// Name returns the pipeline name.
func (p *Pipeline) Name() Name { return p.name }

// Len is the number of steps after macro expansion.
func (p *Pipeline) Len() int { return len(p.steps) }

// Steps returns a copy of the constructed steps.
func (p *Pipeline) Steps() []Step { return slices.Clone(p.steps) }

// Definition returns the fully expanded definition in canonical form.
func (p *Pipeline) Definition() string { return p.definition }

// Fingerprint is a hash of the expanded definition. Pipelines built from
// equivalent definitions share a fingerprint.
func (p *Pipeline) Fingerprint() uint64 { return p.fingerprint }

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry { return p.metrics }

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer { return p.tracer }

// Close gracefully shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnDomainError registers a handler for failed tuples. Handlers run
// asynchronously.
func (p *Pipeline) OnDomainError(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventDomainError, handler)
	return err
}

// OnBatchComplete registers a handler called after every Transform.
func (p *Pipeline) OnBatchComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventBatchComplete, handler)
	return err
}
