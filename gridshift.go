package geoz

import "math"

// gridshift applies a datum shift interpolated from a regular grid. The
// inverse has no closed form and is found by fixed-point iteration.
type gridshift struct {
	name Name
	grid *Grid
}

func newGridshift(p *Parameters) (Operator, error) {
	var (
		d   Datum
		err error
	)
	if p.Has("datum") {
		d, _, err = p.Datum("datum")
	} else {
		d, _, err = p.InlineDatum("grid_")
	}
	if err != nil {
		return nil, err
	}
	if d.Grid == nil {
		return nil, p.fail("datum", d.Name, ErrMissingResource)
	}
	return &gridshift{name: p.Operator(), grid: d.Grid}, nil
}

func (g *gridshift) Name() Name { return g.name }

func (g *gridshift) Forward(ws *Workspace) error {
	lon, lat := ws.Coord[0], ws.Coord[1]
	dlon, dlat, ok := g.grid.Interpolate(lon, lat)
	if !ok {
		return domainError(ErrOutOfDomain, lat*rad2deg)
	}
	ws.Coord[0] = lon + dlon
	ws.Coord[1] = lat + dlat
	return nil
}

// Inverse iterates on the shift clamped to the grid border, so targets
// shifted just outside the grid still resolve. Only the converged source
// point has to lie inside.
func (g *gridshift) Inverse(ws *Workspace) error {
	lon, lat := ws.Coord[0], ws.Coord[1]
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return domainError(ErrOutOfDomain, lat*rad2deg)
	}
	x, y := lon, lat
	for i := 0; i < MaxIterations; i++ {
		dlon, dlat := g.grid.clampedShift(x, y)
		nx, ny := lon-dlon, lat-dlat
		done := math.Abs(nx-x) < Tolerance && math.Abs(ny-y) < Tolerance
		x, y = nx, ny
		if done {
			if !g.grid.Contains(x, y) {
				return domainError(ErrOutOfDomain, y*rad2deg)
			}
			ws.Coord[0], ws.Coord[1] = x, y
			return nil
		}
	}
	return domainError(ErrNoConvergence, lat*rad2deg)
}
