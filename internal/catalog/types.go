package catalog

import (
	"bytes"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one object as returned by the upstream catalog, validated and
// defaulted once at ingestion. The upstream serializes most numerics as
// strings and is inconsistent about NORAD_CAT_ID (string or number), so
// decoding goes through tolerant intermediate types.
type Record struct {
	Name        string // OBJECT_NAME, "Unknown" when absent
	NoradID     string // NORAD_CAT_ID, unique key; empty means malformed
	TLELine1    string
	TLELine2    string
	MeanMotion  float64 // rev/day
	Inclination float64 // degrees
	BStar       float64 // drag term
	Periapsis   float64 // km; upstream calls it PERIAPSIS or PERIGEE
	RCSSize     string  // "Small" when absent
}

// flexFloat decodes a JSON number or a numeric string; null, empty and
// absent all become 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parsing numeric field %q: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a JSON string or bare number; null becomes "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) >= 2 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// rawRecord mirrors the upstream field names.
type rawRecord struct {
	ObjectName  flexString `json:"OBJECT_NAME"`
	NoradID     flexString `json:"NORAD_CAT_ID"`
	TLELine1    flexString `json:"TLE_LINE1"`
	TLELine2    flexString `json:"TLE_LINE2"`
	MeanMotion  flexFloat  `json:"MEAN_MOTION"`
	Inclination flexFloat  `json:"INCLINATION"`
	BStar       flexFloat  `json:"BSTAR"`
	Periapsis   flexFloat  `json:"PERIAPSIS"`
	Perigee     flexFloat  `json:"PERIGEE"`
	RCSSize     flexString `json:"RCS_SIZE"`
}

func (r rawRecord) record() Record {
	rec := Record{
		Name:        string(r.ObjectName),
		NoradID:     string(r.NoradID),
		TLELine1:    string(r.TLELine1),
		TLELine2:    string(r.TLELine2),
		MeanMotion:  float64(r.MeanMotion),
		Inclination: float64(r.Inclination),
		BStar:       float64(r.BStar),
		Periapsis:   float64(r.Periapsis),
		RCSSize:     string(r.RCSSize),
	}
	if rec.Periapsis == 0 {
		rec.Periapsis = float64(r.Perigee)
	}
	if rec.Name == "" {
		rec.Name = "Unknown"
	}
	if rec.RCSSize == "" {
		rec.RCSSize = "Small"
	}
	return rec
}

// DecodeRecords parses an upstream JSON array into validated Records.
func DecodeRecords(body []byte) ([]Record, error) {
	var raw []rawRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		records = append(records, r.record())
	}
	return records, nil
}
