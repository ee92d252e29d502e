package geoz

import "math"

type laeaMode int

const (
	laeaOblique laeaMode = iota
	laeaNorthPole
	laeaSouthPole
)

// laea is the Lambert azimuthal equal area projection in its polar,
// oblique and equatorial aspects. Formulas follow IOGP guidance note 7-2.
type laea struct {
	name  Name
	ellps Ellipsoid
	mode  laeaMode
	lon0  float64
	lat0  float64
	x0    float64
	y0    float64
	qp    float64
	rq    float64
	d     float64
	sb0   float64 // sine of the authalic origin latitude
	cb0   float64
}

func newLaea(p *Parameters) (Operator, error) {
	e, err := p.Ellipsoid()
	if err != nil {
		return nil, err
	}
	lat0, err := p.Angle("lat_0", 0)
	if err != nil {
		return nil, err
	}
	if err := p.Range("lat_0", lat0, -math.Pi/2, math.Pi/2); err != nil {
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

	l := &laea{name: p.Operator(), ellps: e, lon0: lon0, lat0: lat0, x0: x0, y0: y0}
	l.qp = e.qfunc(1)
	l.rq = e.A() * math.Sqrt(l.qp/2)

	const polar = 1e-10
	switch {
	case math.Abs(lat0-math.Pi/2) < polar:
		l.mode = laeaNorthPole
	case math.Abs(lat0+math.Pi/2) < polar:
		l.mode = laeaSouthPole
	default:
		l.mode = laeaOblique
		beta0 := e.AuthalicLatitude(lat0)
		l.sb0, l.cb0 = math.Sincos(beta0)
		s, c := math.Sincos(lat0)
		l.d = e.A() * c / (math.Sqrt(1-e.E2()*s*s) * l.rq * l.cb0)
	}
	return l, nil
}

func (l *laea) Name() Name { return l.name }

func (l *laea) Forward(ws *Workspace) error {
	lat := ws.Coord[1]
	if err := checkLatitude(lat); err != nil {
		return err
	}
	dlam := ws.Coord[0] - l.lon0
	sl, cl := math.Sincos(dlam)
	q := l.ellps.qfunc(math.Sin(lat))
	a := l.ellps.A()

	switch l.mode {
	case laeaNorthPole:
		rho := a * math.Sqrt(math.Max(0, l.qp-q))
		ws.Coord[0] = l.x0 + rho*sl
		ws.Coord[1] = l.y0 - rho*cl
	case laeaSouthPole:
		rho := a * math.Sqrt(math.Max(0, l.qp+q))
		ws.Coord[0] = l.x0 + rho*sl
		ws.Coord[1] = l.y0 + rho*cl
	default:
		sb := math.Max(-1, math.Min(1, q/l.qp))
		cb := math.Sqrt(1 - sb*sb)
		den := 1 + l.sb0*sb + l.cb0*cb*cl
		// The antipode of the origin has no image.
		if den < 1e-12 {
			return domainError(ErrOutOfDomain, lat*rad2deg)
		}
		b := l.rq * math.Sqrt(2/den)
		ws.Coord[0] = l.x0 + b*l.d*cb*sl
		ws.Coord[1] = l.y0 + b/l.d*(l.cb0*sb-l.sb0*cb*cl)
	}
	return nil
}

func (l *laea) Inverse(ws *Workspace) error {
	de := ws.Coord[0] - l.x0
	dn := ws.Coord[1] - l.y0
	a := l.ellps.A()

	var beta, lam float64
	switch l.mode {
	case laeaNorthPole, laeaSouthPole:
		rho := math.Hypot(de, dn)
		sb := 1 - rho*rho/(a*a*l.qp)
		if sb < -1 {
			return domainError(ErrOutOfDomain, rho)
		}
		beta = math.Asin(sb)
		if l.mode == laeaNorthPole {
			lam = math.Atan2(de, -dn)
		} else {
			beta = -beta
			lam = math.Atan2(de, dn)
		}
	default:
		rho := math.Hypot(de/l.d, l.d*dn)
		if rho < 1e-12 {
			ws.Coord[0], ws.Coord[1] = l.lon0, l.lat0
			return nil
		}
		ratio := rho / (2 * l.rq)
		if ratio > 1 {
			return domainError(ErrOutOfDomain, rho)
		}
		c := 2 * math.Asin(ratio)
		sc, cc := math.Sincos(c)
		beta = math.Asin(math.Max(-1, math.Min(1, cc*l.sb0+l.d*dn*sc*l.cb0/rho)))
		lam = math.Atan2(de*sc, l.d*rho*l.cb0*cc-l.d*l.d*dn*l.sb0*sc)
	}

	lat, err := l.ellps.GeographicFromAuthalic(beta)
	if err != nil {
		return err
	}
	ws.Coord[0] = l.lon0 + lam
	ws.Coord[1] = lat
	return nil
}
