package geoz

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one tuple of a batch. Err is a *DomainError
// for tuples the pipeline rejected, or the context error for tuples that
// were never run.
type Result struct {
	Err   error
	Coord Coord
}

// chunksPerWorker splits a batch finely enough to balance uneven work
// without paying for a goroutine per tuple.
const chunksPerWorker = 4

var errNotRun = errors.New("not run")

// Transform runs the pipeline over a batch with at most WithWorkers
// tuples in flight. Every tuple gets its own workspace and its own Result,
// in input order; a domain error spoils only its own slot.
//
// When ctx is canceled no further tuples are started. Tuples that never
// ran carry ctx.Err() and Transform returns it.
func (p *Pipeline) Transform(ctx context.Context, dir Direction, coords []Coord) ([]Result, error) {
	start := p.clock.Now()
	p.metrics.Gauge(PipelineBatchSize).Set(float64(len(coords)))

	ctx, span := p.tracer.StartSpan(ctx, PipelineTransformSpan)
	span.SetTag(PipelineTagDirection, dir.String())
	span.SetTag(PipelineTagItems, strconv.Itoa(len(coords)))

	results := make([]Result, len(coords))
	for i := range results {
		results[i] = Result{Coord: NaN(), Err: errNotRun}
	}

	var failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	size := max(1, (len(coords)+p.workers*chunksPerWorker-1)/(p.workers*chunksPerWorker))
	for lo := 0; lo < len(coords); lo += size {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+size, len(coords))
		g.Go(func() error {
			ws := NewWorkspace(Coord{})
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				ws.Reset(coords[i])
				err := p.applyOne(gctx, ws, dir)
				if err != nil {
					failures.Add(1)
				}
				results[i] = Result{Coord: ws.Coord, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // only ever the context error, checked below

	var err error
	for i := range results {
		if results[i].Err == errNotRun {
			if err = ctx.Err(); err == nil {
				err = context.Canceled
			}
			results[i].Err = err
		}
	}

	elapsed := p.clock.Now().Sub(start)
	p.metrics.Gauge(PipelineDurationMs).Set(float64(elapsed.Milliseconds()))
	failed := int(failures.Load())
	span.SetTag(PipelineTagFailures, strconv.Itoa(failed))
	if err != nil {
		span.SetTag(PipelineTagError, err.Error())
	}
	span.Finish()

	_ = p.hooks.Emit(ctx, PipelineEventBatchComplete, PipelineEvent{ //nolint:errcheck
		Name:      p.name,
		Direction: dir,
		Items:     len(coords),
		Failures:  failed,
		Duration:  elapsed,
		Timestamp: p.clock.Now(),
	})
	return results, err
}
