package geoz

// cart converts geographic coordinates (longitude, latitude, height) to
// geocentric cartesian X, Y, Z and back.
type cart struct {
	name  Name
	ellps Ellipsoid
}

func newCart(p *Parameters) (Operator, error) {
	e, err := p.Ellipsoid()
	if err != nil {
		return nil, err
	}
	return &cart{name: p.Operator(), ellps: e}, nil
}

func (c *cart) Name() Name { return c.name }

func (c *cart) Forward(ws *Workspace) error {
	if err := checkLatitude(ws.Coord[1]); err != nil {
		return err
	}
	ws.Coord = c.ellps.Cartesian(ws.Coord)
	return nil
}

func (c *cart) Inverse(ws *Workspace) error {
	geo, err := c.ellps.Geographic(ws.Coord)
	if err != nil {
		return err
	}
	ws.Coord = geo
	return nil
}
