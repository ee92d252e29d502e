package geoz

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	arcsec = math.Pi / (180 * 3600)
	ppm    = 1e-6
)

// helmert is the 3 or 7 parameter similarity transformation between
// geocentric frames. The forward matrix and its inverse are computed once
// at construction.
type helmert struct {
	name Name
	fwd  [9]float64
	inv  [9]float64
	t    [3]float64
}

func newHelmert(p *Parameters) (Operator, error) {
	var h HelmertParams
	if p.Has("datum") {
		for _, k := range []string{"x", "y", "z", "rx", "ry", "rz", "s", "convention"} {
			if p.Has(k) {
				return nil, p.Conflict("datum", k)
			}
		}
		d, _, err := p.Datum("datum")
		if err != nil {
			return nil, err
		}
		if d.Helmert == nil {
			return nil, p.fail("datum", d.Name, ErrInvalidParameter)
		}
		h = *d.Helmert
	} else {
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{"x", &h.X}, {"y", &h.Y}, {"z", &h.Z},
			{"rx", &h.RX}, {"ry", &h.RY}, {"rz", &h.RZ},
			{"s", &h.S},
		} {
			v, err := p.Real(f.key, 0)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		h.Convention = p.Text("convention", "")
		rotated := h.RX != 0 || h.RY != 0 || h.RZ != 0
		switch h.Convention {
		case PositionVector, CoordinateFrame:
		case "":
			if rotated {
				return nil, p.fail("convention", "", ErrMissingParameter)
			}
		default:
			return nil, p.fail("convention", h.Convention, ErrInvalidParameter)
		}
	}

	exact, err := p.Flag("exact")
	if err != nil {
		return nil, err
	}
	if err := p.Range("s", h.S, -1e5, 1e5); err != nil {
		return nil, err
	}

	m := helmertMatrix(h, exact)
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, p.fail("s", "", ErrInvalidParameter)
	}

	op := &helmert{name: p.Operator(), t: [3]float64{h.X, h.Y, h.Z}}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			op.fwd[3*i+j] = m.At(i, j)
			op.inv[3*i+j] = inv.At(i, j)
		}
	}
	return op, nil
}

// helmertMatrix returns the scaled rotation matrix in the position vector
// convention. The coordinate frame convention is its transpose.
func helmertMatrix(h HelmertParams, exact bool) *mat.Dense {
	rx, ry, rz := h.RX*arcsec, h.RY*arcsec, h.RZ*arcsec
	var r *mat.Dense
	if exact {
		// Frame rotations about x, then y, then z, transposed into the
		// position vector sense.
		sx, cx := math.Sincos(rx)
		sy, cy := math.Sincos(ry)
		sz, cz := math.Sincos(rz)
		mx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, cx, sx, 0, -sx, cx})
		my := mat.NewDense(3, 3, []float64{cy, 0, -sy, 0, 1, 0, sy, 0, cy})
		mz := mat.NewDense(3, 3, []float64{cz, sz, 0, -sz, cz, 0, 0, 0, 1})
		var xy, frame mat.Dense
		xy.Mul(mx, my)
		frame.Mul(&xy, mz)
		r = mat.DenseCopyOf(frame.T())
	} else {
		r = mat.NewDense(3, 3, []float64{
			1, -rz, ry,
			rz, 1, -rx,
			-ry, rx, 1,
		})
	}
	if h.Convention == CoordinateFrame {
		r = mat.DenseCopyOf(r.T())
	}
	r.Scale(1+h.S*ppm, r)
	return r
}

func (h *helmert) Name() Name { return h.name }

func (h *helmert) Forward(ws *Workspace) error {
	c := ws.Coord
	m := &h.fwd
	ws.Coord = Coord{
		h.t[0] + m[0]*c[0] + m[1]*c[1] + m[2]*c[2],
		h.t[1] + m[3]*c[0] + m[4]*c[1] + m[5]*c[2],
		h.t[2] + m[6]*c[0] + m[7]*c[1] + m[8]*c[2],
		c[3],
	}
	return nil
}

func (h *helmert) Inverse(ws *Workspace) error {
	c := ws.Coord
	x, y, z := c[0]-h.t[0], c[1]-h.t[1], c[2]-h.t[2]
	m := &h.inv
	ws.Coord = Coord{
		m[0]*x + m[1]*y + m[2]*z,
		m[3]*x + m[4]*y + m[5]*z,
		m[6]*x + m[7]*y + m[8]*z,
		c[3],
	}
	return nil
}
