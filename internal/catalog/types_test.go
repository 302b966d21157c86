package catalog

import (
	"testing"
)

func TestDecodeRecords(t *testing.T) {
	body := []byte(`[
		{
			"OBJECT_NAME": "FENGYUN 1C DEB",
			"NORAD_CAT_ID": "30778",
			"TLE_LINE1": "1 30778U 99025A   24001.00000000  .00016717  00000-0  10270-3 0  9000",
			"TLE_LINE2": "2 30778  98.7000 100.0000 0011000  90.0000 270.0000 14.50000000100000",
			"MEAN_MOTION": "14.5",
			"INCLINATION": "98.7",
			"BSTAR": "0.0001027",
			"PERIAPSIS": "845.2",
			"RCS_SIZE": "MEDIUM"
		},
		{
			"OBJECT_NAME": null,
			"NORAD_CAT_ID": 34354,
			"MEAN_MOTION": 15.1,
			"BSTAR": null,
			"PERIGEE": "252.7",
			"RCS_SIZE": ""
		}
	]`)

	records, err := DecodeRecords(body)
	if err != nil {
		t.Fatalf("DecodeRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Name != "FENGYUN 1C DEB" || first.NoradID != "30778" {
		t.Errorf("first record identity = %q/%q", first.Name, first.NoradID)
	}
	if first.MeanMotion != 14.5 || first.Inclination != 98.7 {
		t.Errorf("first record elements = %v/%v", first.MeanMotion, first.Inclination)
	}
	if first.BStar != 0.0001027 {
		t.Errorf("BStar = %v, want 0.0001027", first.BStar)
	}
	if first.Periapsis != 845.2 {
		t.Errorf("Periapsis = %v, want 845.2", first.Periapsis)
	}
	if first.RCSSize != "MEDIUM" {
		t.Errorf("RCSSize = %q, want MEDIUM", first.RCSSize)
	}

	// Second record exercises the tolerant decoding and the defaults:
	// numeric NORAD id, null name, empty size, PERIGEE instead of PERIAPSIS.
	second := records[1]
	if second.NoradID != "34354" {
		t.Errorf("numeric NORAD id decoded as %q, want 34354", second.NoradID)
	}
	if second.Name != "Unknown" {
		t.Errorf("null name defaulted to %q, want Unknown", second.Name)
	}
	if second.RCSSize != "Small" {
		t.Errorf("empty size defaulted to %q, want Small", second.RCSSize)
	}
	if second.Periapsis != 252.7 {
		t.Errorf("PERIGEE fallback = %v, want 252.7", second.Periapsis)
	}
	if second.BStar != 0 {
		t.Errorf("null BSTAR = %v, want 0", second.BStar)
	}
}

func TestDecodeRecordsEmpty(t *testing.T) {
	records, err := DecodeRecords([]byte(`[]`))
	if err != nil {
		t.Fatalf("DecodeRecords failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestDecodeRecordsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>login page</html>`},
		{"object not array", `{"error": "no data"}`},
		{"unparseable numeric", `[{"MEAN_MOTION": "fast"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecords([]byte(tt.body)); err == nil {
				t.Error("expected a decode error")
			}
		})
	}
}

func TestFlexFloatEmptyString(t *testing.T) {
	records, err := DecodeRecords([]byte(`[{"NORAD_CAT_ID": "1", "BSTAR": ""}]`))
	if err != nil {
		t.Fatalf("DecodeRecords failed: %v", err)
	}
	if records[0].BStar != 0 {
		t.Errorf("empty-string BSTAR = %v, want 0", records[0].BStar)
	}
}
