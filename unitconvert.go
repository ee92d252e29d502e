package geoz

import "math"

type unit struct {
	factor  float64 // to meters or radians
	angular bool
}

var units = map[string]unit{
	"m":     {factor: 1},
	"km":    {factor: 1000},
	"dm":    {factor: 0.1},
	"cm":    {factor: 0.01},
	"mm":    {factor: 0.001},
	"ft":    {factor: 0.3048},
	"us-ft": {factor: 1200.0 / 3937},
	"fath":  {factor: 1.8288},
	"kmi":   {factor: 1852},
	"rad":   {factor: 1, angular: true},
	"deg":   {factor: math.Pi / 180, angular: true},
	"gon":   {factor: math.Pi / 200, angular: true},
}

// unitconvert rescales the horizontal and vertical elements of a tuple.
type unitconvert struct {
	name Name
	xy   float64
	z    float64
}

func newUnitconvert(p *Parameters) (Operator, error) {
	xy, err := unitRatio(p, "xy_in", "xy_out")
	if err != nil {
		return nil, err
	}
	z, err := unitRatio(p, "z_in", "z_out")
	if err != nil {
		return nil, err
	}
	return &unitconvert{name: p.Operator(), xy: xy, z: z}, nil
}

func unitRatio(p *Parameters, inKey, outKey string) (float64, error) {
	in, ok := units[p.Text(inKey, "m")]
	if !ok {
		return 0, p.fail(inKey, p.Text(inKey, ""), ErrInvalidParameter)
	}
	out, ok := units[p.Text(outKey, "m")]
	if !ok {
		return 0, p.fail(outKey, p.Text(outKey, ""), ErrInvalidParameter)
	}
	if p.Has(inKey) != p.Has(outKey) {
		// A lone angular unit would otherwise be converted to meters.
		if in.angular || out.angular {
			return 0, p.fail(outKey, "", ErrMissingParameter)
		}
	}
	if in.angular != out.angular {
		return 0, p.Conflict(inKey, outKey)
	}
	return in.factor / out.factor, nil
}

func (u *unitconvert) Name() Name { return u.name }

func (u *unitconvert) Forward(ws *Workspace) error {
	ws.Coord[0] *= u.xy
	ws.Coord[1] *= u.xy
	ws.Coord[2] *= u.z
	return nil
}

func (u *unitconvert) Inverse(ws *Workspace) error {
	ws.Coord[0] /= u.xy
	ws.Coord[1] /= u.xy
	ws.Coord[2] /= u.z
	return nil
}
