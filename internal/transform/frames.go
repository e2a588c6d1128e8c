package transform

import (
	"math"
	"time"

	"github.com/soniakeys/unit"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Vector is a Cartesian position in km.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the vector length.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// TEMEToECEF rotates a TEME position into the Earth-fixed frame at time t using
// GMST only (no polar motion or equation of the equinoxes).
func TEMEToECEF(r Vector, t time.Time) Vector {
	return TEMEToECEFWithGMST(r, GMST(t))
}

// TEMEToECEFWithGMST applies r_ECEF = R3(θ) * r_TEME for a precomputed GMST θ.
func TEMEToECEFWithGMST(r Vector, gmst float64) Vector {
	sinG, cosG := math.Sincos(gmst)
	return Vector{
		X: r.X*cosG + r.Y*sinG,
		Y: -r.X*sinG + r.Y*cosG,
		Z: r.Z,
	}
}

// GeodeticPoint holds a geodetic position: latitude and longitude in degrees,
// altitude in km above the ellipsoid.
type GeodeticPoint struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
	AltKm  float64 `json:"alt_km"`
}

// ECEFToGeodetic converts ECEF coordinates (km) to geodetic coordinates using the
// iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func ECEFToGeodetic(r Vector) GeodeticPoint {
	lon := math.Atan2(r.Y, r.X)
	p := math.Hypot(r.X, r.Y)
	lat := math.Atan2(r.Z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(r.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: unit.Angle(lat).Deg(),
		LonDeg: unit.Angle(lon).Deg(),
		AltKm:  alt,
	}
}

// SubPoint returns the geodetic point below a TEME position at time t.
func SubPoint(r Vector, t time.Time) GeodeticPoint {
	return ECEFToGeodetic(TEMEToECEF(r, t))
}
