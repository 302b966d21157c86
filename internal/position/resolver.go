// Package position derives sub-satellite geographic fixes from TLE data.
package position

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/geo"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite. Pure Go,
// battle-tested, explicit TEME output. Propagate() takes Satellite by value
// so SGP4 error codes are not visible to the caller; propagation failures
// are detected by checking the output for NaN/Inf and an unreasonable
// position magnitude.

// Fix is a sub-satellite point at a reference instant. Longitude uses the
// [-180, 180] convention.
type Fix struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// Resolver converts a catalog record plus a reference instant into a Fix.
// Stateless and safe for concurrent use.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve propagates the record's TLE to the reference instant and returns
// the geographic fix. Any failure (malformed TLE, SGP4 init error, NaN in
// the output) returns an error; the caller drops the
// object and continues, failures are strictly per-object.
func (r *Resolver) Resolve(rec catalog.Record, at time.Time) (Fix, error) {
	line1 := strings.TrimRight(rec.TLELine1, "\r\n ")
	line2 := strings.TrimRight(rec.TLELine2, "\r\n ")

	// Pre-validate before handing to go-satellite, which calls log.Fatal
	// on malformed input.
	if err := validateTLELines(line1, line2); err != nil {
		return Fix{}, fmt.Errorf("invalid TLE for object %s: %w", rec.NoradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return Fix{}, fmt.Errorf("sgp4 init failed for object %s: code=%d %s", rec.NoradID, sat.Error, sat.ErrorStr)
	}

	at = at.UTC()
	pos, _ := satellite.Propagate(sat, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())

	if !geo.OrbitRadiusValid(pos.X, pos.Y, pos.Z) {
		return Fix{}, fmt.Errorf("sgp4 propagation failed for object %s: position [%g, %g, %g] km out of range", rec.NoradID, pos.X, pos.Y, pos.Z)
	}

	gmst := geo.GMST(at)
	pt := geo.TEMEToECEF(pos.X, pos.Y, pos.Z, gmst).Geodetic()
	if !pt.Valid() {
		return Fix{}, fmt.Errorf("geodetic conversion failed for object %s: %+v", rec.NoradID, pt)
	}

	return Fix{LatDeg: pt.LatDeg, LonDeg: pt.LonDeg, AltKm: pt.AltKm}, nil
}

// validateTLELines performs basic format validation on trimmed TLE lines.
func validateTLELines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}

// Distance returns the great-circle surface distance in kilometers between
// two fixes, ignoring altitude. Used by the diag tool to sanity-check
// successive fixes of the same object.
func Distance(a, b Fix) float64 {
	const earthRadiusKm = 6371.0
	la1 := a.LatDeg * math.Pi / 180
	la2 := b.LatDeg * math.Pi / 180
	dLat := (b.LatDeg - a.LatDeg) * math.Pi / 180
	dLon := (b.LonDeg - a.LonDeg) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
