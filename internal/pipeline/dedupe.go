package pipeline

import "github.com/rahimhussain95/DarkNet/internal/catalog"

// Dedupe collapses records to one entry per NORAD catalog ID,
// first-seen-wins, preserving first-occurrence order. Pure and idempotent.
// Records with an empty ID pass through untouched; the aggregator rejects
// them separately so the data-contract violation is logged, not silently
// merged.
func Dedupe(records []catalog.Record) []catalog.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]catalog.Record, 0, len(records))

	for _, rec := range records {
		if rec.NoradID == "" {
			out = append(out, rec)
			continue
		}
		if _, ok := seen[rec.NoradID]; ok {
			continue
		}
		seen[rec.NoradID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
