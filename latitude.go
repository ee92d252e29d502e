package geoz

// latitude replaces the geographic latitude by one of the auxiliary
// latitudes. Pick exactly one of conformal=true or authalic=true.
type latitude struct {
	name      Name
	ellps     Ellipsoid
	conformal bool
}

func newLatitude(p *Parameters) (Operator, error) {
	e, err := p.Ellipsoid()
	if err != nil {
		return nil, err
	}
	conformal, err := p.Flag("conformal")
	if err != nil {
		return nil, err
	}
	authalic, err := p.Flag("authalic")
	if err != nil {
		return nil, err
	}
	switch {
	case conformal && authalic:
		return nil, p.Conflict("conformal", "authalic")
	case !conformal && !authalic:
		return nil, p.fail("conformal", "", ErrMissingParameter)
	}
	return &latitude{name: p.Operator(), ellps: e, conformal: conformal}, nil
}

func (l *latitude) Name() Name { return l.name }

func (l *latitude) Forward(ws *Workspace) error {
	phi := ws.Coord[1]
	if err := checkLatitude(phi); err != nil {
		return err
	}
	if l.conformal {
		ws.Coord[1] = l.ellps.ConformalLatitude(phi)
	} else {
		ws.Coord[1] = l.ellps.AuthalicLatitude(phi)
	}
	return nil
}

func (l *latitude) Inverse(ws *Workspace) error {
	aux := ws.Coord[1]
	if err := checkLatitude(aux); err != nil {
		return err
	}
	var (
		phi float64
		err error
	)
	if l.conformal {
		phi, err = l.ellps.GeographicFromConformal(aux)
	} else {
		phi, err = l.ellps.GeographicFromAuthalic(aux)
	}
	if err != nil {
		return err
	}
	ws.Coord[1] = phi
	return nil
}
