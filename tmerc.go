package geoz

import "math"

// etaMax bounds the isometric easting handled by the series. Beyond it
// the Krüger expansion no longer converges usefully.
const etaMax = 2.623395162778

// tmerc is the transverse Mercator projection, computed with Krüger's
// series to sixth order in the third flattening, following Karney (2011).
type tmerc struct {
	name  Name
	ellps Ellipsoid
	alp   [6]float64
	bet   [6]float64
	lon0  float64
	x0    float64
	y0    float64
	qn    float64 // k0 times the rectifying radius
	zb    float64 // northing of the origin latitude
}

func newTmerc(p *Parameters) (Operator, error) {
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
	k0, err := p.Real("k_0", 1)
	if err != nil {
		return nil, err
	}
	if err := p.Positive("k_0", k0); err != nil {
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
	return buildTmerc(p.Operator(), e, lat0, lon0, k0, x0, y0), nil
}

func buildTmerc(name Name, e Ellipsoid, lat0, lon0, k0, x0, y0 float64) *tmerc {
	t := &tmerc{name: name, ellps: e, lon0: lon0, x0: x0, y0: y0}
	n := e.N()
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	t.alp = [6]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
		34729*n5/80640 - 3418889*n6/1995840,
		212378941 * n6 / 319334400,
	}
	t.bet = [6]float64{
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
		17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
		4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
		4583*n5/161280 - 108847*n6/3991680,
		20648693 * n6 / 638668800,
	}
	t.qn = k0 * e.RectifyingRadius()

	// Every term is evaluated at the conformal latitude of the origin.
	chi := e.ConformalLatitude(lat0)
	xi0 := chi
	for j := 1; j <= 6; j++ {
		xi0 += t.alp[j-1] * math.Sin(2*float64(j)*chi)
	}
	t.zb = -t.qn * xi0
	return t
}

func (t *tmerc) Name() Name { return t.name }

func (t *tmerc) Forward(ws *Workspace) error {
	lon, lat := ws.Coord[0], ws.Coord[1]
	if err := checkLatitude(lat); err != nil {
		return err
	}
	lam := math.Remainder(lon-t.lon0, 2*math.Pi)
	sl, cl := math.Sincos(lam)

	taup := t.ellps.taupf(math.Tan(lat))
	xip := math.Atan2(taup, cl)
	etap := math.Asinh(sl / math.Hypot(taup, cl))
	if math.Abs(etap) > etaMax {
		return domainError(ErrOutOfDomain, lam*rad2deg)
	}

	xi, eta := xip, etap
	for j := 1; j <= 6; j++ {
		k := 2 * float64(j)
		xi += t.alp[j-1] * math.Sin(k*xip) * math.Cosh(k*etap)
		eta += t.alp[j-1] * math.Cos(k*xip) * math.Sinh(k*etap)
	}
	ws.Coord[0] = t.x0 + t.qn*eta
	ws.Coord[1] = t.y0 + t.qn*xi + t.zb
	return nil
}

func (t *tmerc) Inverse(ws *Workspace) error {
	xi := (ws.Coord[1] - t.y0 - t.zb) / t.qn
	eta := (ws.Coord[0] - t.x0) / t.qn
	if math.Abs(eta) > etaMax {
		return domainError(ErrOutOfDomain, ws.Coord[0])
	}

	xip, etap := xi, eta
	for j := 1; j <= 6; j++ {
		k := 2 * float64(j)
		xip -= t.bet[j-1] * math.Sin(k*xi) * math.Cosh(k*eta)
		etap -= t.bet[j-1] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	s := math.Sinh(etap)
	sx, cx := math.Sincos(xip)
	r := math.Hypot(s, cx)
	taup := sx / r
	tau, err := t.ellps.tauf(taup)
	if err != nil {
		return err
	}
	ws.Coord[0] = t.lon0 + math.Atan2(s, cx)
	ws.Coord[1] = math.Atan(tau)
	return nil
}

// newUtm builds a Universal Transverse Mercator zone.
func newUtm(p *Parameters) (Operator, error) {
	e, err := p.Ellipsoid()
	if err != nil {
		return nil, err
	}
	if _, err := p.RequiredText("zone"); err != nil {
		return nil, err
	}
	zone, err := p.Natural("zone", 0)
	if err != nil {
		return nil, err
	}
	if zone < 1 || zone > 60 {
		return nil, p.fail("zone", p.Text("zone", ""), ErrInvalidParameter)
	}
	north, err := p.Flag("north")
	if err != nil {
		return nil, err
	}
	south, err := p.Flag("south")
	if err != nil {
		return nil, err
	}
	if north && south {
		return nil, p.Conflict("north", "south")
	}

	lon0 := (-183 + 6*float64(zone)) * deg2rad
	y0 := 0.0
	if south {
		y0 = 10_000_000
	}
	return buildTmerc(p.Operator(), e, 0, lon0, 0.9996, 500_000, y0), nil
}
