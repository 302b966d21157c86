package pipeline

import (
	"testing"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
)

func ids(records []catalog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.NoradID
	}
	return out
}

func TestDedupe(t *testing.T) {
	in := []catalog.Record{
		{NoradID: "100", Name: "A"},
		{NoradID: "200", Name: "B"},
		{NoradID: "100", Name: "A-duplicate"},
		{NoradID: "300", Name: "C"},
		{NoradID: "200", Name: "B-duplicate"},
	}

	got := Dedupe(in)

	want := []string{"100", "200", "300"}
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("got %d records, want %d", len(gotIDs), len(want))
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, gotIDs[i], want[i])
		}
	}

	// First occurrence wins: the surviving "100" is the original.
	if got[0].Name != "A" {
		t.Errorf("first-seen record replaced: got name %q", got[0].Name)
	}
}

// TestDedupeIdempotent verifies dedupe(dedupe(x)) == dedupe(x).
func TestDedupeIdempotent(t *testing.T) {
	in := []catalog.Record{
		{NoradID: "1"}, {NoradID: "2"}, {NoradID: "1"}, {NoradID: "3"}, {NoradID: "3"},
	}

	once := Dedupe(in)
	twice := Dedupe(once)

	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].NoradID != twice[i].NoradID {
			t.Errorf("position %d: %s vs %s", i, once[i].NoradID, twice[i].NoradID)
		}
	}
}

func TestDedupeEmpty(t *testing.T) {
	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("Dedupe(nil) returned %d records", len(got))
	}
}

// TestDedupeMissingID verifies records without a catalog ID pass through
// for the aggregator to reject individually.
func TestDedupeMissingID(t *testing.T) {
	in := []catalog.Record{
		{NoradID: "", Name: "orphan-1"},
		{NoradID: "42"},
		{NoradID: "", Name: "orphan-2"},
	}

	got := Dedupe(in)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3 (orphans must not collapse)", len(got))
	}
}
