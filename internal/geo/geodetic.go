// Package geo converts SGP4 propagator output into geodetic sub-satellite
// points.
//
// SGP4 produces positions in the TEME (True Equator Mean Equinox) inertial
// frame; the sub-satellite point needs an Earth-fixed frame. The transform
// chain is TEME → ECEF via a GMST-only Z-rotation (ignores polar motion and
// the equation of equinoxes, ~50m error at most), then ECEF → geodetic on
// the WGS-84 ellipsoid via Bowring iteration.
//
// All distances are kilometers; latitudes/longitudes are degrees with
// longitude in [-180, 180].
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package geo

import "math"

// WGS-84 ellipsoid parameters (kilometers).
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ECEF is an Earth-Centered Earth-Fixed position in kilometers.
type ECEF struct {
	X, Y, Z float64
}

// Point is a geodetic position: latitude/longitude in degrees, altitude in
// kilometers above the WGS-84 ellipsoid.
type Point struct {
	LatDeg, LonDeg, AltKm float64
}

// TEMEToECEF rotates a TEME position (km) into the ECEF frame using a
// precomputed GMST angle in radians.
//
// r_ECEF = R3(θ_GMST) * r_TEME
func TEMEToECEF(x, y, z, gmst float64) ECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return ECEF{
		X: x*cosG + y*sinG,
		Y: -x*sinG + y*cosG,
		Z: z,
	}
}

// Geodetic converts the ECEF position to geodetic coordinates using the
// iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func (e ECEF) Geodetic() Point {
	lon := math.Atan2(e.Y, e.X)

	p := math.Sqrt(e.X*e.X + e.Y*e.Y)

	lat := math.Atan2(e.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(e.Z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(e.Z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Point{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}

// Valid reports whether the point is usable as a sub-satellite fix:
// no NaN/Inf components and latitude within [-90, 90].
func (pt Point) Valid() bool {
	for _, v := range [3]float64{pt.LatDeg, pt.LonDeg, pt.AltKm} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return pt.LatDeg >= -90 && pt.LatDeg <= 90
}

// OrbitRadiusValid reports whether a TEME position magnitude (km) is
// physically reasonable for an Earth-orbiting object. LEO sits around
// 6500-8400 km from the geocenter; the band is generous to admit anything
// up to beyond GEO while rejecting numeric blow-ups.
func OrbitRadiusValid(x, y, z float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(z) ||
		math.IsInf(x, 0) || math.IsInf(y, 0) || math.IsInf(z, 0) {
		return false
	}
	mag := math.Sqrt(x*x + y*y + z*z)
	return mag >= 6200.0 && mag <= 50000.0
}
