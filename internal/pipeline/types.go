package pipeline

import "github.com/rahimhussain95/DarkNet/internal/risk"

// Object is one fully processed debris object: identity, current
// sub-satellite position, the orbital parameters consumers chart, and the
// risk priority. Immutable once emitted. Field names match the legacy JSON
// contract consumed by the front end.
type Object struct {
	Name        string     `json:"name"`
	NoradID     string     `json:"NORAD_CAT_ID"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Altitude    float64    `json:"altitude"`
	MeanMotion  float64    `json:"mean_motion"`
	Inclination float64    `json:"inclination"`
	Priority    risk.Level `json:"Priority"`
}
