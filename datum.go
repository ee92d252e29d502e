package geoz

import (
	"fmt"
	"math"
)

// Helmert rotation conventions. They differ in the sign of the rotation
// angles.
const (
	PositionVector  = "position_vector"
	CoordinateFrame = "coordinate_frame"
)

// HelmertParams are the constants of a similarity transformation between
// geocentric frames. Rotations are in arc seconds and the scale in parts
// per million, as they are published.
type HelmertParams struct {
	Convention string
	X, Y, Z    float64
	RX, RY, RZ float64
	S          float64
}

// Grid is a regular latitude/longitude grid of datum shifts. Nodes are
// stored row by row from the south-west corner. Shifts are in radians and
// are added to longitude and latitude respectively.
type Grid struct {
	DLon []float64
	DLat []float64
	Lon0 float64
	Lat0 float64
	Step [2]float64
	Cols int
	Rows int
}

// Datum is a resolved geodetic datum: the ellipsoid it is realized on and
// either Helmert constants or a shift grid towards the reference frame.
type Datum struct {
	Helmert   *HelmertParams
	Grid      *Grid
	Name      Name
	Ellipsoid Name
}

var builtinDatums = map[Name]Record{
	"WGS84":  {"ellps": "WGS84", "x": 0.0, "y": 0.0, "z": 0.0},
	"ETRS89": {"ellps": "GRS80", "x": 0.0, "y": 0.0, "z": 0.0},
	"ED50":   {"ellps": "intl", "x": -87.0, "y": -96.0, "z": -120.0},
	"OSGB36": {
		"ellps": "airy", "convention": PositionVector,
		"x": 446.448, "y": -125.157, "z": 542.060,
		"rx": 0.1502, "ry": 0.2470, "rz": 0.8421, "s": -20.4894,
	},
	"DHDN": {
		"ellps": "bessel", "convention": PositionVector,
		"x": 598.1, "y": 73.7, "z": 418.2,
		"rx": 0.202, "ry": 0.045, "rz": -2.455, "s": 6.7,
	},
}

// DatumFromRecord interprets a datum record. Records carrying grid_*
// keys describe a shift grid, all others Helmert constants.
func DatumFromRecord(name Name, r Record) (Datum, error) {
	_, isGrid := r["grid_cols"]
	allowed := helmertKey
	if isGrid {
		allowed = gridKey
	}
	if err := r.checkKeys(allowed); err != nil {
		return Datum{}, err
	}

	d := Datum{Name: name, Ellipsoid: DefaultEllipsoid}
	if e, ok := r.Text("ellps"); ok {
		d.Ellipsoid = e
	}
	if isGrid {
		g, err := gridFromRecord(r)
		if err != nil {
			return Datum{}, err
		}
		d.Grid = g
		return d, nil
	}

	h := &HelmertParams{Convention: PositionVector}
	if c, ok := r.Text("convention"); ok {
		if c != PositionVector && c != CoordinateFrame {
			return Datum{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "convention", Value: c, Step: -1}
		}
		h.Convention = c
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"x", &h.X}, {"y", &h.Y}, {"z", &h.Z},
		{"rx", &h.RX}, {"ry", &h.RY}, {"rz", &h.RZ},
		{"s", &h.S},
	} {
		v, _, err := r.Float(f.key)
		if err != nil {
			return Datum{}, err
		}
		*f.dst = v
	}
	d.Helmert = h
	return d, nil
}

func helmertKey(k string) bool {
	switch k {
	case "ellps", "convention", "x", "y", "z", "rx", "ry", "rz", "s":
		return true
	}
	return false
}

func gridKey(k string) bool {
	switch k {
	case "ellps", "grid_cols", "grid_rows", "grid_lon_0", "grid_lat_0",
		"grid_dlon", "grid_dlat", "grid_shift_lon", "grid_shift_lat":
		return true
	}
	return false
}

// gridFromRecord reads an inline grid. Origin and spacing are in degrees,
// shifts in arc seconds.
func gridFromRecord(r Record) (*Grid, error) {
	g := &Grid{}
	ints := []struct {
		key string
		dst *int
	}{{"grid_cols", &g.Cols}, {"grid_rows", &g.Rows}}
	for _, f := range ints {
		v, ok, err := r.Float(f.key)
		if err != nil {
			return nil, err
		}
		if !ok || v < 2 || v != math.Trunc(v) {
			return nil, &ConstructionError{Err: ErrInvalidParameter, Parameter: f.key, Value: fmt.Sprint(r[f.key]), Step: -1}
		}
		*f.dst = int(v)
	}

	reals := []struct {
		key string
		dst *float64
	}{
		{"grid_lon_0", &g.Lon0}, {"grid_lat_0", &g.Lat0},
		{"grid_dlon", &g.Step[0]}, {"grid_dlat", &g.Step[1]},
	}
	for _, f := range reals {
		v, ok, err := r.Float(f.key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ConstructionError{Err: ErrMissingParameter, Parameter: f.key, Step: -1}
		}
		*f.dst = v * deg2rad
	}
	if !(g.Step[0] > 0) || !(g.Step[1] > 0) {
		return nil, &ConstructionError{Err: ErrInvalidParameter, Parameter: "grid_dlon", Step: -1}
	}

	n := g.Cols * g.Rows
	series := []struct {
		key string
		dst *[]float64
	}{{"grid_shift_lon", &g.DLon}, {"grid_shift_lat", &g.DLat}}
	for _, f := range series {
		v, ok, err := r.Series(f.key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ConstructionError{Err: ErrMissingParameter, Parameter: f.key, Step: -1}
		}
		if len(v) != n {
			return nil, &ConstructionError{
				Err:       ErrInvalidParameter,
				Parameter: f.key,
				Value:     fmt.Sprintf("%d values, want %d", len(v), n),
				Step:      -1,
			}
		}
		out := make([]float64, n)
		for i, s := range v {
			out[i] = s / 3600 * deg2rad
		}
		*f.dst = out
	}
	return g, nil
}

// Contains reports whether lon, lat (radians) fall inside the grid.
func (g *Grid) Contains(lon, lat float64) bool {
	x := (lon - g.Lon0) / g.Step[0]
	y := (lat - g.Lat0) / g.Step[1]
	return x >= 0 && y >= 0 && x <= float64(g.Cols-1) && y <= float64(g.Rows-1)
}

// Interpolate returns the bilinearly interpolated shift at lon, lat.
func (g *Grid) Interpolate(lon, lat float64) (dlon, dlat float64, ok bool) {
	if !g.Contains(lon, lat) {
		return 0, 0, false
	}
	dlon, dlat = g.interpolate((lon-g.Lon0)/g.Step[0], (lat-g.Lat0)/g.Step[1])
	return dlon, dlat, true
}

// clampedShift returns the shift at the grid position nearest to lon, lat.
func (g *Grid) clampedShift(lon, lat float64) (dlon, dlat float64) {
	x := min(max((lon-g.Lon0)/g.Step[0], 0), float64(g.Cols-1))
	y := min(max((lat-g.Lat0)/g.Step[1], 0), float64(g.Rows-1))
	return g.interpolate(x, y)
}

// interpolate works in grid index units; x and y must be inside the grid.
func (g *Grid) interpolate(x, y float64) (dlon, dlat float64) {
	col := min(int(x), g.Cols-2)
	row := min(int(y), g.Rows-2)
	fx, fy := x-float64(col), y-float64(row)

	at := func(v []float64) float64 {
		i := row*g.Cols + col
		return v[i]*(1-fx)*(1-fy) +
			v[i+1]*fx*(1-fy) +
			v[i+g.Cols]*(1-fx)*fy +
			v[i+g.Cols+1]*fx*fy
	}
	return at(g.DLon), at(g.DLat)
}
