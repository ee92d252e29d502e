package geoz

import "math"

// Coord is a 4D coordinate tuple. The first two elements are always
// spatial; the third is commonly a height and the fourth a time or epoch.
// Operators decide what the elements mean: a geographic tuple holds
// longitude and latitude in radians, a projected one easting and northing
// in meters, a geocentric one X, Y, Z in meters.
type Coord [4]float64

// Geo builds a geographic tuple from latitude and longitude in degrees,
// the order in which they are usually spoken.
func Geo(latitude, longitude, height, t float64) Coord {
	return Coord{longitude, latitude, height, t}.ToRadians()
}

// Gis builds a geographic tuple from longitude and latitude in degrees.
func Gis(longitude, latitude, height, t float64) Coord {
	return Coord{longitude, latitude, height, t}.ToRadians()
}

// NaN returns a tuple with all four elements set to NaN. Failed
// transformations leave this value behind.
func NaN() Coord {
	return Coord{math.NaN(), math.NaN(), math.NaN(), math.NaN()}
}

// ToRadians converts the first two elements from degrees to radians.
func (c Coord) ToRadians() Coord {
	return Coord{c[0] * deg2rad, c[1] * deg2rad, c[2], c[3]}
}

// ToDegrees converts the first two elements from radians to degrees.
func (c Coord) ToDegrees() Coord {
	return Coord{c[0] * rad2deg, c[1] * rad2deg, c[2], c[3]}
}

// ToGeo converts an internal longitude/latitude tuple in radians into a
// latitude/longitude tuple in degrees.
func (c Coord) ToGeo() Coord {
	return Coord{c[1] * rad2deg, c[0] * rad2deg, c[2], c[3]}
}

// IsNaN reports whether any element is NaN.
func (c Coord) IsNaN() bool {
	for _, v := range c {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Hypot2 is the Euclidean distance between two tuples in the plane
// spanned by their first two elements.
func (c Coord) Hypot2(other Coord) float64 {
	return math.Hypot(c[0]-other[0], c[1]-other[1])
}

// Hypot3 is the Euclidean distance in the space spanned by the first
// three elements.
func (c Coord) Hypot3(other Coord) float64 {
	return math.Hypot(math.Hypot(c[0]-other[0], c[1]-other[1]), c[2]-other[2])
}

// DMS converts degrees, minutes and seconds into decimal degrees. The
// sign is taken from the degree component.
func DMS(d, m, s float64) float64 {
	sign := 1.0
	if math.Signbit(d) {
		sign = -1
	}
	return sign * (math.Abs(d) + (m+s/60)/60)
}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// checkLatitude rejects latitudes (radians) beyond the poles. The
// offending value is reported in degrees.
func checkLatitude(phi float64) error {
	if math.IsNaN(phi) || math.Abs(phi) > math.Pi/2+1e-12 {
		return domainError(ErrOutOfDomain, phi*rad2deg)
	}
	return nil
}
