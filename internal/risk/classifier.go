// Package risk scores debris objects for coarse collision risk.
//
// The rubric weighs five orbital/physical factors with fixed thresholds:
//
//   - BSTAR: higher drag means lower altitude and faster decay.
//   - Periapsis: a low perigee points toward atmospheric entry.
//   - Mean motion: faster objects raise collision probability and severity.
//   - RCS size: larger objects raise collision severity.
//   - Crowded zone: the 600-800 km band has the densest debris population.
//
// The thresholds and weights are deliberately constants, not configuration:
// downstream consumers depend on score parity across deployments.
package risk

import (
	"fmt"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
)

// Level is the three-way risk category derived from a score.
type Level int

const (
	Low Level = iota
	Medium
	High
)

// String returns the user-facing label, e.g. "High Risk".
func (l Level) String() string {
	switch l {
	case High:
		return "High Risk"
	case Medium:
		return "Medium Risk"
	default:
		return "Low Risk"
	}
}

// MarshalJSON encodes the level as its label.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a label produced by MarshalJSON.
func (l *Level) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"Low Risk"`:
		*l = Low
	case `"Medium Risk"`:
		*l = Medium
	case `"High Risk"`:
		*l = High
	default:
		return fmt.Errorf("unknown risk level %s", b)
	}
	return nil
}

// Factor weights.
const (
	weightBStar       = 3
	weightPeriapsis   = 2
	weightMeanMotion  = 2
	weightSize        = 1
	weightCrowdedZone = 2
)

// Classification thresholds on the total score.
const (
	highThreshold   = 15
	mediumThreshold = 10
)

// The crowded-zone band, periapsis kilometers inclusive.
const (
	crowdedZoneLow  = 600.0
	crowdedZoneHigh = 800.0
)

// Score computes the weighted risk score for a record.
func Score(rec catalog.Record) int {
	bstar := 1
	switch {
	case rec.BStar > 1e-3: // strictly greater: 1e-3 exactly scores 2
		bstar = 3
	case rec.BStar > 1e-4:
		bstar = 2
	}

	periapsis := 1
	switch {
	case rec.Periapsis < 200:
		periapsis = 3
	case rec.Periapsis <= 300:
		periapsis = 2
	}

	meanMotion := 1
	switch {
	case rec.MeanMotion > 15.5:
		meanMotion = 3
	case rec.MeanMotion >= 15:
		meanMotion = 2
	}

	size := 1
	if rec.RCSSize == "Medium" {
		size = 2
	}

	crowded := 0
	if rec.Periapsis >= crowdedZoneLow && rec.Periapsis <= crowdedZoneHigh {
		crowded = 2
	}

	return weightBStar*bstar +
		weightPeriapsis*periapsis +
		weightMeanMotion*meanMotion +
		weightSize*size +
		weightCrowdedZone*crowded
}

// Classify maps a record to its risk level. Pure and deterministic.
func Classify(rec catalog.Record) Level {
	score := Score(rec)
	switch {
	case score >= highThreshold:
		return High
	case score >= mediumThreshold:
		return Medium
	default:
		return Low
	}
}
