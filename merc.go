package geoz

import "math"

// merc is the ellipsoidal normal aspect Mercator projection.
type merc struct {
	name  Name
	ellps Ellipsoid
	lon0  float64
	k0    float64
	x0    float64
	y0    float64
}

func newMerc(p *Parameters) (Operator, error) {
	e, err := p.Ellipsoid()
	if err != nil {
		return nil, err
	}
	lon0, err := p.Angle("lon_0", 0)
	if err != nil {
		return nil, err
	}
	x0, err := p.Real("x_0", 0)
	if err != nil {
		return nil, err
	}
	y0, err := p.Real("y_0", 0)
	if err != nil {
		return nil, err
	}

	k0, err := p.Real("k_0", 1)
	if err != nil {
		return nil, err
	}
	if p.Has("lat_ts") {
		if p.Has("k_0") {
			return nil, p.Conflict("k_0", "lat_ts")
		}
		latTS, err := p.Angle("lat_ts", 0)
		if err != nil {
			return nil, err
		}
		if err := p.Range("lat_ts", latTS, -math.Pi/2+1e-10, math.Pi/2-1e-10); err != nil {
			return nil, err
		}
		s, c := math.Sincos(latTS)
		k0 = c / math.Sqrt(1-e.E2()*s*s)
	}
	if err := p.Positive("k_0", k0); err != nil {
		return nil, err
	}
	return &merc{name: p.Operator(), ellps: e, lon0: lon0, k0: k0, x0: x0, y0: y0}, nil
}

func (m *merc) Name() Name { return m.name }

func (m *merc) Forward(ws *Workspace) error {
	lat := ws.Coord[1]
	if err := checkLatitude(lat); err != nil {
		return err
	}
	// The poles map to infinity.
	if math.Abs(lat) >= math.Pi/2-1e-12 {
		return domainError(ErrOutOfDomain, lat*rad2deg)
	}
	ka := m.k0 * m.ellps.A()
	ws.Coord[0] = m.x0 + ka*math.Remainder(ws.Coord[0]-m.lon0, 2*math.Pi)
	ws.Coord[1] = m.y0 + ka*math.Asinh(m.ellps.taupf(math.Tan(lat)))
	return nil
}

func (m *merc) Inverse(ws *Workspace) error {
	ka := m.k0 * m.ellps.A()
	tau, err := m.ellps.tauf(math.Sinh((ws.Coord[1] - m.y0) / ka))
	if err != nil {
		return err
	}
	ws.Coord[0] = m.lon0 + (ws.Coord[0]-m.x0)/ka
	ws.Coord[1] = math.Atan(tau)
	return nil
}
