package geoz

import (
	"fmt"
	"math"
	"slices"
)

// Iteration limits shared by every operator that inverts a mapping
// numerically. Exceeding MaxIterations is reported as ErrNoConvergence.
const (
	MaxIterations = 32
	Tolerance     = 1e-12
)

// consistencyTolerance is the relative slack allowed between redundant
// ellipsoid parameters such as a, b and rf given together.
const consistencyTolerance = 1e-9

// DefaultEllipsoid is used when neither the step nor the globals name one.
const DefaultEllipsoid = "GRS80"

// Ellipsoid is an oblate ellipsoid of revolution. Only the semi-major axis
// and the flattening are stored; everything else is derived on demand so
// the shape parameters can never disagree.
type Ellipsoid struct {
	a float64
	f float64
}

// NewEllipsoid validates and returns the ellipsoid with semi-major axis a
// in meters and flattening f.
func NewEllipsoid(a, f float64) (Ellipsoid, error) {
	if !(a > 0) || math.IsInf(a, 0) {
		return Ellipsoid{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "a", Value: fmt.Sprint(a), Step: -1}
	}
	if !(f >= 0 && f < 1) {
		return Ellipsoid{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "f", Value: fmt.Sprint(f), Step: -1}
	}
	return Ellipsoid{a: a, f: f}, nil
}

// EllipsoidFromRecord builds an ellipsoid from any two of the keys a, f,
// rf and b. Additional keys must agree with the derived shape.
func EllipsoidFromRecord(r Record) (Ellipsoid, error) {
	if err := r.checkKeys(func(k string) bool { return slices.Contains(shapeKeys, k) }); err != nil {
		return Ellipsoid{}, err
	}
	vals := map[string]float64{}
	for _, k := range shapeKeys {
		v, ok, err := r.Float(k)
		if err != nil {
			return Ellipsoid{}, err
		}
		if ok {
			vals[k] = v
		}
	}
	a, hasA := vals["a"]
	b, hasB := vals["b"]
	f, hasF := vals["f"]
	if rf, ok := vals["rf"]; ok && !hasF {
		switch {
		case rf == 0:
			// rf=0 is the conventional spelling of a sphere.
			f, hasF = 0, true
		case rf > 1:
			f, hasF = 1/rf, true
		default:
			return Ellipsoid{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "rf", Value: fmt.Sprint(rf), Step: -1}
		}
	}

	switch {
	case hasA && hasF:
	case hasA && hasB:
		if b > a || b <= 0 {
			return Ellipsoid{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "b", Value: fmt.Sprint(b), Step: -1}
		}
		f = (a - b) / a
	case hasB && hasF:
		if f >= 1 {
			return Ellipsoid{}, &ConstructionError{Err: ErrInvalidParameter, Parameter: "f", Value: fmt.Sprint(f), Step: -1}
		}
		a = b / (1 - f)
	default:
		return Ellipsoid{}, &ConstructionError{Err: ErrMissingParameter, Parameter: "a", Step: -1}
	}

	e, err := NewEllipsoid(a, f)
	if err != nil {
		return Ellipsoid{}, err
	}
	derived := map[string]float64{"a": e.A(), "f": e.F(), "b": e.B(), "rf": e.RF()}
	for k, given := range vals {
		if k == "rf" && given == 0 && e.f == 0 {
			continue
		}
		if !agrees(given, derived[k]) {
			return Ellipsoid{}, &ConstructionError{
				Err:       ErrConflictingParameters,
				Parameter: k,
				Value:     fmt.Sprintf("%v (derived %v)", given, derived[k]),
				Step:      -1,
			}
		}
	}
	return e, nil
}

func agrees(x, y float64) bool {
	if x == y {
		return true
	}
	scale := math.Max(math.Abs(x), math.Abs(y))
	if scale < 1 {
		return math.Abs(x-y) <= consistencyTolerance
	}
	return math.Abs(x-y) <= consistencyTolerance*scale
}

// A is the semi-major axis.
func (e Ellipsoid) A() float64 { return e.a }

// F is the flattening.
func (e Ellipsoid) F() float64 { return e.f }

// RF is the inverse flattening, +Inf for a sphere.
func (e Ellipsoid) RF() float64 {
	if e.f == 0 {
		return math.Inf(1)
	}
	return 1 / e.f
}

// B is the semi-minor axis.
func (e Ellipsoid) B() float64 { return e.a * (1 - e.f) }

// E2 is the squared first eccentricity.
func (e Ellipsoid) E2() float64 { return e.f * (2 - e.f) }

// E is the first eccentricity.
func (e Ellipsoid) E() float64 { return math.Sqrt(e.E2()) }

// SecondE2 is the squared second eccentricity.
func (e Ellipsoid) SecondE2() float64 {
	e2 := e.E2()
	return e2 / (1 - e2)
}

// N is the third flattening.
func (e Ellipsoid) N() float64 { return e.f / (2 - e.f) }

// IsSphere reports whether the flattening is zero.
func (e Ellipsoid) IsSphere() bool { return e.f == 0 }

// RectifyingRadius is the radius of the sphere with the same meridian
// length as the ellipsoid.
func (e Ellipsoid) RectifyingRadius() float64 {
	n := e.N()
	n2 := n * n
	return e.a / (1 + n) * (1 + n2*(1.0/4+n2*(1.0/64+n2/256)))
}

// PrimeVerticalRadius is the radius of curvature in the prime vertical at
// latitude phi.
func (e Ellipsoid) PrimeVerticalRadius(phi float64) float64 {
	s := math.Sin(phi)
	return e.a / math.Sqrt(1-e.E2()*s*s)
}

// MeridianRadius is the radius of curvature in the meridian at latitude
// phi.
func (e Ellipsoid) MeridianRadius(phi float64) float64 {
	s := math.Sin(phi)
	w := 1 - e.E2()*s*s
	return e.a * (1 - e.E2()) / (w * math.Sqrt(w))
}

// Cartesian converts longitude, latitude (radians) and ellipsoidal height
// into geocentric X, Y, Z.
func (e Ellipsoid) Cartesian(c Coord) Coord {
	lam, phi, h := c[0], c[1], c[2]
	n := e.PrimeVerticalRadius(phi)
	sp, cp := math.Sincos(phi)
	sl, cl := math.Sincos(lam)
	return Coord{
		(n + h) * cp * cl,
		(n + h) * cp * sl,
		(n*(1-e.E2()) + h) * sp,
		c[3],
	}
}

// Geographic converts geocentric X, Y, Z into longitude, latitude and
// ellipsoidal height by fixed-point iteration on the latitude.
func (e Ellipsoid) Geographic(c Coord) (Coord, error) {
	x, y, z := c[0], c[1], c[2]
	p := math.Hypot(x, y)
	lam := math.Atan2(y, x)
	if p == 0 {
		phi := math.Copysign(math.Pi/2, z)
		return Coord{lam, phi, math.Abs(z) - e.B(), c[3]}, nil
	}

	e2 := e.E2()
	phi := math.Atan2(z, p*(1-e2))
	for i := 0; ; i++ {
		if i == MaxIterations {
			return NaN(), domainError(ErrNoConvergence, z)
		}
		n := e.PrimeVerticalRadius(phi)
		next := math.Atan2(z+e2*n*math.Sin(phi), p)
		done := math.Abs(next-phi) < Tolerance
		phi = next
		if done {
			break
		}
	}
	sp, cp := math.Sincos(phi)
	h := p*cp + z*sp - e.a*math.Sqrt(1-e2*sp*sp)
	return Coord{lam, phi, h, c[3]}, nil
}

// eatanhe is e * atanh(e * x), zero on a sphere.
func (e Ellipsoid) eatanhe(x float64) float64 {
	ecc := e.E()
	if ecc == 0 {
		return 0
	}
	return ecc * math.Atanh(ecc*x)
}

// taupf maps tan(phi) to tan(chi), chi being the conformal latitude.
func (e Ellipsoid) taupf(tau float64) float64 {
	if math.IsInf(tau, 0) {
		return tau
	}
	tau1 := math.Hypot(1, tau)
	sig := math.Sinh(e.eatanhe(tau / tau1))
	return math.Hypot(1, sig)*tau - sig*tau1
}

// tauf inverts taupf with Newton's method.
func (e Ellipsoid) tauf(taup float64) (float64, error) {
	if math.IsInf(taup, 0) {
		return taup, nil
	}
	e2m := 1 - e.E2()
	tau := taup / e2m
	if math.Abs(taup) > 70 {
		tau = taup * math.Exp(e.eatanhe(1))
	}
	stol := Tolerance * math.Max(1, math.Abs(taup))
	for i := 0; i < MaxIterations; i++ {
		taupa := e.taupf(tau)
		dtau := (taup - taupa) * (1 + e2m*tau*tau) /
			(e2m * math.Hypot(1, tau) * math.Hypot(1, taupa))
		tau += dtau
		if math.Abs(dtau) < stol {
			return tau, nil
		}
	}
	return math.NaN(), domainError(ErrNoConvergence, taup)
}

// ConformalLatitude maps a geographic latitude to the conformal sphere.
func (e Ellipsoid) ConformalLatitude(phi float64) float64 {
	return math.Atan(e.taupf(math.Tan(phi)))
}

// GeographicFromConformal is the inverse of ConformalLatitude.
func (e Ellipsoid) GeographicFromConformal(chi float64) (float64, error) {
	tau, err := e.tauf(math.Tan(chi))
	if err != nil {
		return math.NaN(), err
	}
	return math.Atan(tau), nil
}

// qfunc is the authalic q function of sin(phi).
func (e Ellipsoid) qfunc(s float64) float64 {
	ecc := e.E()
	if ecc == 0 {
		return 2 * s
	}
	e2 := ecc * ecc
	return (1 - e2) * (s/(1-e2*s*s) + math.Atanh(ecc*s)/ecc)
}

// AuthalicLatitude maps a geographic latitude to the sphere of equal
// surface area.
func (e Ellipsoid) AuthalicLatitude(phi float64) float64 {
	if e.IsSphere() {
		return phi
	}
	r := e.qfunc(math.Sin(phi)) / e.qfunc(1)
	return math.Asin(math.Max(-1, math.Min(1, r)))
}

// GeographicFromAuthalic is the inverse of AuthalicLatitude, solved with
// Snyder's iteration.
func (e Ellipsoid) GeographicFromAuthalic(beta float64) (float64, error) {
	if e.IsSphere() || math.Abs(beta) >= math.Pi/2 {
		return beta, nil
	}
	return e.latitudeFromQ(e.qfunc(1) * math.Sin(beta))
}

func (e Ellipsoid) latitudeFromQ(q float64) (float64, error) {
	qp := e.qfunc(1)
	if math.Abs(q) >= qp*(1-Tolerance) {
		return math.Copysign(math.Pi/2, q), nil
	}
	ecc := e.E()
	e2 := ecc * ecc
	phi := math.Asin(q / 2)
	for i := 0; i < MaxIterations; i++ {
		s, c := math.Sincos(phi)
		den := 1 - e2*s*s
		dphi := den * den / (2 * c) *
			(q/(1-e2) - s/den - math.Atanh(ecc*s)/ecc)
		phi += dphi
		if math.Abs(dphi) < Tolerance {
			return phi, nil
		}
	}
	return math.NaN(), domainError(ErrNoConvergence, q)
}

func (e Ellipsoid) String() string {
	return fmt.Sprintf("a=%v rf=%v", e.a, e.RF())
}

// builtinEllipsoids holds the defining constants of commonly used
// ellipsoids. Values follow the EPSG registry.
var builtinEllipsoids = map[Name]Record{
	"GRS80":    {"a": 6378137.0, "rf": 298.257222101},
	"WGS84":    {"a": 6378137.0, "rf": 298.257223563},
	"WGS72":    {"a": 6378135.0, "rf": 298.26},
	"GRS67":    {"a": 6378160.0, "rf": 298.247167427},
	"intl":     {"a": 6378388.0, "rf": 297.0},
	"hayford":  {"a": 6378388.0, "rf": 297.0},
	"bessel":   {"a": 6377397.155, "rf": 299.1528128},
	"clrk66":   {"a": 6378206.4, "b": 6356583.8},
	"clrk80":   {"a": 6378249.145, "rf": 293.4663},
	"airy":     {"a": 6377563.396, "b": 6356256.910},
	"mod_airy": {"a": 6377340.189, "b": 6356034.446},
	"krass":    {"a": 6378245.0, "rf": 298.3},
	"helmert":  {"a": 6378200.0, "rf": 298.3},
	"evrst30":  {"a": 6377276.345, "rf": 300.8017},
	"sphere":   {"a": 6370997.0, "f": 0.0},
}
