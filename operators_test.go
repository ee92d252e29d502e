package geoz

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func build(t *testing.T, definition string, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(context.Background(), definition, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func fwd(t *testing.T, p *Pipeline, c Coord) Coord {
	t.Helper()
	ws := NewWorkspace(c)
	require.NoError(t, p.Apply(ws, Fwd))
	return ws.Coord
}

func inv(t *testing.T, p *Pipeline, c Coord) Coord {
	t.Helper()
	ws := NewWorkspace(c)
	require.NoError(t, p.Apply(ws, Inv))
	return ws.Coord
}

func buildErr(definition string, opts ...Option) error {
	p, err := NewPipeline(context.Background(), definition, opts...)
	if err == nil {
		_ = p.Close()
	}
	return err
}

func requireCoord(t *testing.T, want, got Coord, delta float64) {
	t.Helper()
	for i := range want {
		if math.Abs(want[i]-got[i]) > delta {
			t.Fatalf("element %d: expected %.12f, got %.12f (delta %g)", i, want[i], got[i], delta)
		}
	}
}

// requireGeo compares geographic tuples that went through a geocentric
// round trip. Heights pick up rounding from the 6e6 m magnitudes involved,
// so they get a looser bound than the angles.
func requireGeo(t *testing.T, want, got Coord) {
	t.Helper()
	requireCoord(t, Coord{want[0], want[1]}, Coord{got[0], got[1]}, 1e-10)
	require.InDelta(t, want[2], got[2], 1e-8, "height")
	require.Equal(t, want[3], got[3], "time")
}

func TestNoop(t *testing.T) {
	p := build(t, "noop")
	c := Coord{1, 2, 3, 4}
	require.Equal(t, c, fwd(t, p, c))
	require.Equal(t, c, inv(t, p, c))
}

func TestCart(t *testing.T) {
	p := build(t, "cart")

	t.Run("Reference Point", func(t *testing.T) {
		xyz := fwd(t, p, Geo(55, 12, 100, 0))
		requireCoord(t, Coord{3586525.7610575133, 762339.5841113444, 5201465.438292584, 0}, xyz, 1e-6)
		requireGeo(t, Geo(55, 12, 100, 0), inv(t, p, xyz))
	})

	t.Run("Named Ellipsoid", func(t *testing.T) {
		intl := build(t, "cart ellps=intl")
		require.NotEqual(t, fwd(t, p, Geo(55, 12, 0, 0)), fwd(t, intl, Geo(55, 12, 0, 0)))
	})

	t.Run("Latitude Beyond The Pole", func(t *testing.T) {
		err := p.Apply(NewWorkspace(Geo(200, 12, 0, 0)), Fwd)
		require.ErrorIs(t, err, ErrOutOfDomain)
	})

	t.Run("Ellipsoid Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("cart ellps=nosuch"), ErrMissingResource)
		require.ErrorIs(t, buildErr("cart ellps=intl a=6378137"), ErrConflictingParameters)
		require.ErrorIs(t, buildErr("cart a=-1 f=0"), ErrInvalidParameter)
		require.NoError(t, buildErr("cart a=6378137 rf=298.257222101"))
	})
}

func TestHelmert(t *testing.T) {
	t.Run("Translation", func(t *testing.T) {
		p := build(t, "helmert x=1 y=-2 z=3")
		requireCoord(t, Coord{11, 18, 33, 5}, fwd(t, p, Coord{10, 20, 30, 5}), 1e-12)
		requireCoord(t, Coord{10, 20, 30, 5}, inv(t, p, Coord{11, 18, 33, 5}), 1e-12)
	})

	t.Run("Rotation Conventions", func(t *testing.T) {
		pv := build(t, "helmert rz=1 convention=position_vector")
		got := fwd(t, pv, Coord{1e6, 0, 0, 0})
		require.InDelta(t, 1e6, got[0], 1e-3)
		require.InDelta(t, 4.8481368, got[1], 1e-6)

		cf := build(t, "helmert rz=1 convention=coordinate_frame")
		got = fwd(t, cf, Coord{1e6, 0, 0, 0})
		require.InDelta(t, -4.8481368, got[1], 1e-6)
	})

	t.Run("Scale", func(t *testing.T) {
		p := build(t, "helmert s=10")
		got := fwd(t, p, Coord{1e6, 0, 0, 0})
		require.InDelta(t, 1e6+10, got[0], 1e-9)
	})

	t.Run("Seven Parameter Round Trip", func(t *testing.T) {
		for _, def := range []string{
			"helmert datum=OSGB36",
			"helmert datum=DHDN exact=true",
			"helmert x=1 y=2 z=3 rx=10 ry=-20 rz=30 s=5 convention=coordinate_frame",
		} {
			p := build(t, def)
			in := Coord{3909833.018, -147097.138, 5020322.459, 0}
			requireCoord(t, in, inv(t, p, fwd(t, p, in)), 1e-6)
		}
	})

	t.Run("Exact And Approximate Agree For Small Angles", func(t *testing.T) {
		approx := build(t, "helmert rx=0.1 ry=0.2 rz=0.3 convention=position_vector")
		exact := build(t, "helmert rx=0.1 ry=0.2 rz=0.3 convention=position_vector exact=true")
		in := Coord{3909833.018, -147097.138, 5020322.459, 0}
		requireCoord(t, fwd(t, approx, in), fwd(t, exact, in), 1e-4)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("helmert rx=1"), ErrMissingParameter)
		require.ErrorIs(t, buildErr("helmert rx=1 convention=sideways"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("helmert datum=OSGB36 x=1"), ErrConflictingParameters)
		require.ErrorIs(t, buildErr("helmert datum=nowhere"), ErrMissingResource)
		require.ErrorIs(t, buildErr("helmert x=abc"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("helmert s=1e6"), ErrInvalidParameter)
	})
}

func TestDatumShiftPipeline(t *testing.T) {
	p := build(t, "cart ellps=intl | helmert x=-87 y=-96 z=-120 | cart inv ellps=GRS80")
	out := fwd(t, p, Geo(55, 12, 0, 0)).ToGeo()
	// ED50 to ETRS89 moves points in Denmark by roughly a hundred meters.
	require.InDelta(t, 55, out[0], 0.01)
	require.InDelta(t, 12, out[1], 0.01)
	require.False(t, out[0] == 55 || out[1] == 12)

	back := inv(t, p, Geo(out[0], out[1], out[2], 0))
	requireGeo(t, Geo(55, 12, 0, 0), back)
}

func TestUtm(t *testing.T) {
	p := build(t, "utm zone=32")

	t.Run("Reference Points", func(t *testing.T) {
		requireCoord(t, Coord{691875.6321396608, 6098907.825005012, 0, 0}, fwd(t, p, Geo(55, 12, 0, 0)), 1e-6)
		requireCoord(t, Coord{-455673.81418903964, 6198246.671090279, 0, 0}, fwd(t, p, Geo(55, -6, 0, 0)), 1e-6)
	})

	t.Run("Southern Hemisphere", func(t *testing.T) {
		requireCoord(t, Coord{691875.6321396608, -6098907.825005012, 0, 0}, fwd(t, p, Geo(-55, 12, 0, 0)), 1e-6)
		south := build(t, "utm zone=32 south=true")
		requireCoord(t, Coord{691875.6321396608, 10_000_000 - 6098907.825005012, 0, 0}, fwd(t, south, Geo(-55, 12, 0, 0)), 1e-6)
	})

	t.Run("Round Trip", func(t *testing.T) {
		for _, c := range []Coord{Geo(55, 12, 0, 0), Geo(0, 9, 0, 0), Geo(-80, 3, 0, 0), Geo(84, 14, 0, 0)} {
			requireCoord(t, c, inv(t, p, fwd(t, p, c)), 1e-12)
		}
	})

	t.Run("Too Far From The Central Meridian", func(t *testing.T) {
		err := p.Apply(NewWorkspace(Geo(0, 9+90, 0, 0)), Fwd)
		require.ErrorIs(t, err, ErrOutOfDomain)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("utm"), ErrMissingParameter)
		require.ErrorIs(t, buildErr("utm zone=0"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("utm zone=61"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("utm zone=abc"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("utm zone=32 north=true south=true"), ErrConflictingParameters)
	})
}

func TestTmerc(t *testing.T) {
	t.Run("Matches UTM", func(t *testing.T) {
		tm := build(t, "tmerc lon_0=9 k_0=0.9996 x_0=500000")
		utm := build(t, "utm zone=32")
		c := Geo(55, 12, 0, 0)
		requireCoord(t, fwd(t, utm, c), fwd(t, tm, c), 1e-9)
	})

	t.Run("Origin Latitude", func(t *testing.T) {
		p := build(t, "tmerc lat_0=49 lon_0=-2 k_0=0.9996012717 x_0=400000 y_0=-100000 ellps=airy")
		origin := fwd(t, p, Geo(49, -2, 0, 0))
		requireCoord(t, Coord{400000, -100000, 0, 0}, origin, 1e-6)
		c := Geo(52.6575703, 1.7179215, 0, 0)
		requireCoord(t, c, inv(t, p, fwd(t, p, c)), 1e-12)

		// British National Grid example from the EPSG guidance notes.
		lat := 52 + 39/60.0 + 27.2531/3600
		lon := 1 + 43/60.0 + 4.5177/3600
		en := fwd(t, p, Geo(lat, lon, 0, 0))
		require.InDelta(t, 651409.903, en[0], 1e-3)
		require.InDelta(t, 313177.270, en[1], 1e-3)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("tmerc k_0=0"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("tmerc lat_0=91"), ErrInvalidParameter)
	})
}

func TestMerc(t *testing.T) {
	p := build(t, "merc")

	t.Run("Reference Point", func(t *testing.T) {
		xy := fwd(t, p, Geo(55, 12, 0, 0))
		requireCoord(t, Coord{1335833.8895192828, 7326837.7148738755, 0, 0}, xy, 1e-6)
		requireCoord(t, Geo(55, 12, 0, 0), inv(t, p, xy), 1e-12)
	})

	t.Run("Poles Have No Image", func(t *testing.T) {
		err := p.Apply(NewWorkspace(Geo(90, 0, 0, 0)), Fwd)
		require.ErrorIs(t, err, ErrOutOfDomain)
	})

	t.Run("Latitude Of True Scale", func(t *testing.T) {
		ts := build(t, "merc lat_ts=30")
		c := Geo(40, 20, 0, 0)
		full := fwd(t, p, c)
		scaled := fwd(t, ts, c)
		require.Less(t, scaled[0], full[0])
		requireCoord(t, c, inv(t, ts, scaled), 1e-12)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("merc lat_ts=30 k_0=1"), ErrConflictingParameters)
		require.ErrorIs(t, buildErr("merc lat_ts=90"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("merc k_0=-1"), ErrInvalidParameter)
	})
}

func TestLaea(t *testing.T) {
	t.Run("Oblique Reference Point", func(t *testing.T) {
		p := build(t, "laea lat_0=52 lon_0=10 x_0=4321000 y_0=3210000")
		xy := fwd(t, p, Geo(50, 5, 0, 0))
		requireCoord(t, Coord{3962799.45, 2999718.85, 0, 0}, xy, 1e-2)
		requireCoord(t, Geo(50, 5, 0, 0), inv(t, p, xy), 1e-12)
		requireCoord(t, Geo(52, 10, 0, 0), inv(t, p, Coord{4321000, 3210000, 0, 0}), 1e-12)
	})

	t.Run("Polar Aspects", func(t *testing.T) {
		north := build(t, "laea lat_0=90")
		c := Geo(80, 30, 0, 0)
		requireCoord(t, c, inv(t, north, fwd(t, north, c)), 1e-11)

		south := build(t, "laea lat_0=-90")
		c = Geo(-70, -120, 0, 0)
		requireCoord(t, c, inv(t, south, fwd(t, south, c)), 1e-11)
	})

	t.Run("Equatorial Aspect", func(t *testing.T) {
		p := build(t, "laea")
		c := Geo(-20, 45, 0, 0)
		requireCoord(t, c, inv(t, p, fwd(t, p, c)), 1e-11)
	})

	t.Run("Outside The Disc", func(t *testing.T) {
		p := build(t, "laea lat_0=52 lon_0=10")
		err := p.Apply(NewWorkspace(Coord{1e8, 1e8, 0, 0}), Inv)
		require.ErrorIs(t, err, ErrOutOfDomain)
	})
}

func TestUnitconvert(t *testing.T) {
	t.Run("Linear Units", func(t *testing.T) {
		p := build(t, "unitconvert xy_in=m xy_out=km z_in=m z_out=ft")
		got := fwd(t, p, Coord{1500, 2500, 3.048, 7})
		requireCoord(t, Coord{1.5, 2.5, 10, 7}, got, 1e-12)
		requireCoord(t, Coord{1500, 2500, 3.048, 7}, inv(t, p, got), 1e-9)
	})

	t.Run("Angular Units", func(t *testing.T) {
		p := build(t, "unitconvert xy_in=deg xy_out=rad")
		requireCoord(t, Geo(55, 12, 0, 0), fwd(t, p, Coord{12, 55, 0, 0}), 1e-15)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("unitconvert xy_in=deg xy_out=m"), ErrConflictingParameters)
		require.ErrorIs(t, buildErr("unitconvert xy_in=furlong xy_out=m"), ErrInvalidParameter)
		require.ErrorIs(t, buildErr("unitconvert xy_in=deg"), ErrMissingParameter)
	})
}

func TestAxisswap(t *testing.T) {
	t.Run("Swap", func(t *testing.T) {
		p := build(t, "axisswap order=2,1")
		require.Equal(t, Coord{2, 1, 3, 4}, fwd(t, p, Coord{1, 2, 3, 4}))
	})

	t.Run("Flip", func(t *testing.T) {
		p := build(t, "axisswap order=1,-2")
		require.Equal(t, Coord{1, -2, 3, 4}, fwd(t, p, Coord{1, 2, 3, 4}))
	})

	t.Run("Inverse Undoes Forward", func(t *testing.T) {
		p := build(t, "axisswap order=2,-3,1")
		out := fwd(t, p, Coord{1, 2, 3, 4})
		require.Equal(t, Coord{2, -3, 1, 4}, out)
		require.Equal(t, Coord{1, 2, 3, 4}, inv(t, p, out))
	})

	t.Run("Construction Errors", func(t *testing.T) {
		for _, def := range []string{
			"axisswap order=1,1",
			"axisswap order=5,1",
			"axisswap order=3,4",
			"axisswap order=1",
			"axisswap order=0,1",
		} {
			require.ErrorIs(t, buildErr(def), ErrInvalidParameter, def)
		}
		require.ErrorIs(t, buildErr("axisswap"), ErrMissingParameter)
	})
}

func TestStackOperators(t *testing.T) {
	t.Run("Push And Pop Restore Elements", func(t *testing.T) {
		p := build(t, "push v_1=true v_2=true | cart | pop v_1=true v_2=true")
		in := Geo(55, 12, 100, 0)
		out := fwd(t, p, in)
		require.Equal(t, in[0], out[0])
		require.Equal(t, in[1], out[1])
		require.InDelta(t, 5201465.438292584, out[2], 1e-6)
	})

	t.Run("Inverse Swaps Roles", func(t *testing.T) {
		p := build(t, "push v_3=true | pop v_3=true")
		// Inverse runs the pop step first, which then stores.
		in := Coord{1, 2, 3, 4}
		require.Equal(t, in, inv(t, p, in))
	})

	t.Run("Underflow", func(t *testing.T) {
		p := build(t, "pop v_1=true")
		err := p.Apply(NewWorkspace(Coord{}), Fwd)
		require.ErrorIs(t, err, ErrStackUnderflow)
	})

	t.Run("Overflow", func(t *testing.T) {
		step := "push v_1=true v_2=true v_3=true v_4=true"
		steps := make([]string, MaxStackDepth/4+1)
		for i := range steps {
			steps[i] = step
		}
		p := build(t, strings.Join(steps, " | "))
		err := p.Apply(NewWorkspace(Coord{}), Fwd)
		require.ErrorIs(t, err, ErrStackOverflow)
	})

	t.Run("Needs A Selection", func(t *testing.T) {
		require.ErrorIs(t, buildErr("push"), ErrMissingParameter)
		require.ErrorIs(t, buildErr("pop v_2=maybe"), ErrInvalidParameter)
	})
}

const inlineGrid = "gridshift grid_cols=3 grid_rows=3 grid_lon_0=10 grid_lat_0=50 grid_dlon=1 grid_dlat=1 " +
	"grid_shift_lon=1,2,3,1,2,3,1,2,3 grid_shift_lat=0,0,0,4,4,4,8,8,8"

func TestGridshift(t *testing.T) {
	t.Run("Inline Grid", func(t *testing.T) {
		p := build(t, inlineGrid)
		in := Geo(50.5, 10.5, 0, 0)
		out := fwd(t, p, in)
		require.InDelta(t, in[0]+1.5*arcsec, out[0], 1e-15)
		require.InDelta(t, in[1]+2*arcsec, out[1], 1e-15)
		requireCoord(t, in, inv(t, p, out), 1e-12)
	})

	t.Run("Named Grid", func(t *testing.T) {
		src, err := YAMLSource([]byte(`
datums:
  tiny:
    grid_cols: 2
    grid_rows: 2
    grid_lon_0: 0
    grid_lat_0: 0
    grid_dlon: 1
    grid_dlat: 1
    grid_shift_lon: [10, 10, 10, 10]
    grid_shift_lat: [-5, -5, -5, -5]
`))
		require.NoError(t, err)
		p := build(t, "gridshift datum=tiny", WithSource(Sources(src, Builtins())))
		out := fwd(t, p, Geo(0.5, 0.5, 0, 0))
		require.InDelta(t, 0.5*deg2rad+10*arcsec, out[0], 1e-15)
		require.InDelta(t, 0.5*deg2rad-5*arcsec, out[1], 1e-15)
	})

	t.Run("Inverse Near The Border", func(t *testing.T) {
		p := build(t, inlineGrid)
		in := Geo(51.9999, 11.5, 0, 0)
		out := fwd(t, p, in)
		require.Greater(t, out[1], 52*deg2rad, "target lies north of the grid")
		requireCoord(t, in, inv(t, p, out), 1e-12)
	})

	t.Run("Outside The Grid", func(t *testing.T) {
		p := build(t, inlineGrid)
		require.ErrorIs(t, p.Apply(NewWorkspace(Geo(0, 0, 0, 0)), Fwd), ErrOutOfDomain)
		require.ErrorIs(t, p.Apply(NewWorkspace(Geo(0, 0, 0, 0)), Inv), ErrOutOfDomain)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("gridshift"), ErrMissingParameter)
		require.ErrorIs(t, buildErr("gridshift datum=ED50"), ErrMissingResource)
		require.ErrorIs(t, buildErr("gridshift grid_cols=3"), ErrInvalidParameter)
	})
}

func TestLatitude(t *testing.T) {
	t.Run("Conformal", func(t *testing.T) {
		p := build(t, "latitude conformal=true")
		out := fwd(t, p, Geo(55, 12, 0, 0))
		require.InDelta(t, 54.81910902368902, out[1]*rad2deg, 1e-10)
		require.Equal(t, 12*deg2rad, out[0])
		requireCoord(t, Geo(55, 12, 0, 0), inv(t, p, out), 1e-12)
	})

	t.Run("Authalic", func(t *testing.T) {
		p := build(t, "latitude authalic=true")
		out := fwd(t, p, Geo(55, 12, 0, 0))
		require.InDelta(t, 54.87936159451782, out[1]*rad2deg, 1e-10)
		requireCoord(t, Geo(55, 12, 0, 0), inv(t, p, out), 1e-12)
	})

	t.Run("Construction Errors", func(t *testing.T) {
		require.ErrorIs(t, buildErr("latitude"), ErrMissingParameter)
		require.ErrorIs(t, buildErr("latitude conformal=true authalic=true"), ErrConflictingParameters)
	})
}

func TestConstructionErrorsNameTheStep(t *testing.T) {
	err := buildErr("noop | utm zone=99")
	var ce *ConstructionError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, 1, ce.Step)
	require.Equal(t, "utm", ce.Operator)
	require.Equal(t, "zone", ce.Parameter)
	require.Equal(t, "99", ce.Value)
}
