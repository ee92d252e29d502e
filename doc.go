// Package geoz builds and runs geodetic coordinate transformation pipelines.
//
// # Overview
//
// A pipeline is described in a small text language and compiled once:
//
//	p, err := geoz.NewPipeline(ctx, "cart ellps=intl | helmert x=-87 y=-96 z=-120 | cart inv")
//
// The compiled *Pipeline is immutable. It can be applied forward or
// inverse to any number of coordinate tuples, from any number of
// goroutines, each call working on its own Workspace:
//
//	ws := geoz.NewWorkspace(geoz.Geo(55, 12, 0, 0))
//	err := p.Apply(ws, geoz.Fwd)
//
// or to whole batches, where a failing tuple only spoils its own result:
//
//	results, err := p.Transform(ctx, geoz.Inv, coords)
//
// # Core Concepts
//
//   - Coord: four float64 elements. Angles are radians internally; Geo,
//     Gis and ToGeo convert from and to degrees.
//   - Operator: one named step with a Forward and an Inverse.
//   - Constructor: builds an Operator from its Parameters. A Registry
//     maps operator names to constructors.
//   - Workspace: the per-call state, holding the tuple, a scratch stack
//     for push and pop, and the last domain error.
//
// # Definition Language
//
// Steps are separated by '|'. A step is an operator name followed by
// key=value parameters and the modifiers inv, omit_fwd and omit_inv:
//
//	utm zone=32 inv | laea lat_0=52 lon_0=10
//
// A bare name always starts a new step, so "a inv b|c" is three steps.
// Brackets group steps, so a group can be inverted as a whole:
//
//	[cart ellps=intl | helmert x=-87 y=-96 z=-120] inv
//
// Names not known to the Registry are looked up in the Macros table and
// replaced by their definitions. Parameters given where a macro is used
// override the same parameters inside it, and $key inside a macro picks
// up the value given at the call site.
//
// # Builtin Operators
//
//   - noop: identity
//   - cart: geographic to geocentric cartesian
//   - helmert: 3 and 7 parameter similarity transforms
//   - tmerc, utm: transverse Mercator (Krüger series)
//   - merc: Mercator
//   - laea: Lambert azimuthal equal area
//   - unitconvert, axisswap: units and axis order
//   - push, pop: park elements on the workspace stack
//   - gridshift: bilinear datum shift grids
//   - latitude: conformal and authalic auxiliary latitudes
//
// Ellipsoids and datums are resolved through a Source. Builtins holds
// the common ones; YAMLSource and Sources add more.
//
// # Observability
//
// Every pipeline carries a metricz registry, a tracez tracer and hookz
// events (OnDomainError, OnBatchComplete). Construction logs through the
// zap logger given with WithLogger; the per-tuple path never logs.
//
// # Errors
//
// Problems with the definition surface from NewPipeline as *SyntaxError,
// *ConstructionError or *CycleError. Problems with a single coordinate
// surface as *DomainError and never affect other coordinates.
package geoz
