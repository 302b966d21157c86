// Package pipeline turns a raw catalog response into the served result set:
// dedupe, per-object position resolution, risk classification.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/metrics"
	"github.com/rahimhussain95/DarkNet/internal/position"
	"github.com/rahimhussain95/DarkNet/internal/risk"
)

// Aggregator orchestrates the per-object processing stage with a fixed
// worker pool. SGP4 propagation dominates the cost, so records are resolved
// in parallel; output order still follows survivor order after dedupe.
type Aggregator struct {
	resolver *position.Resolver
	workers  int
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator with the given worker count.
func NewAggregator(resolver *position.Resolver, workers int, logger *slog.Logger) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		resolver: resolver,
		workers:  workers,
		logger:   logger,
	}
}

// job pairs a surviving record with its position in the output sequence.
type job struct {
	idx int
	rec catalog.Record
}

// Aggregate processes raw records into the final object sequence at the
// given reference instant. Per-record failures (missing catalog ID, bad
// TLE, NaN positions) are logged and skipped; the batch never aborts on
// those. Context cancellation is a batch-level failure: a run that could
// not process every record returns the context error and no objects, so a
// truncated result is never mistaken for a complete one.
func (a *Aggregator) Aggregate(ctx context.Context, records []catalog.Record, at time.Time) ([]Object, error) {
	survivors := Dedupe(records)

	// Results indexed by survivor position; nil marks a dropped record.
	// Each slot is written by exactly one worker.
	results := make([]*Object, len(survivors))

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = a.process(j.rec, at)
			}
		}()
	}

	aborted := false
feed:
	for i, rec := range survivors {
		select {
		case jobs <- job{idx: i, rec: rec}:
		case <-ctx.Done():
			aborted = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if aborted {
		a.logger.Warn("aggregation aborted",
			"raw", len(records),
			"error", ctx.Err(),
		)
		return nil, fmt.Errorf("aggregating records: %w", ctx.Err())
	}

	out := make([]Object, 0, len(results))
	for _, obj := range results {
		if obj != nil {
			out = append(out, *obj)
		}
	}

	a.logger.Info("aggregation complete",
		"raw", len(records),
		"deduped", len(survivors),
		"processed", len(out),
		"dropped", len(survivors)-len(out),
	)
	return out, nil
}

// process handles one record: contract check, position, risk. Returns nil
// when the record is dropped.
func (a *Aggregator) process(rec catalog.Record, at time.Time) *Object {
	if rec.NoradID == "" {
		a.logger.Warn("skipping record without NORAD_CAT_ID", "name", rec.Name)
		metrics.IncObjectsDropped("missing_id")
		return nil
	}

	fix, err := a.resolver.Resolve(rec, at)
	if err != nil {
		a.logger.Warn("skipping record with unresolvable position",
			"norad_id", rec.NoradID,
			"error", err,
		)
		metrics.IncObjectsDropped("propagation")
		return nil
	}

	return &Object{
		Name:        rec.Name,
		NoradID:     rec.NoradID,
		Latitude:    fix.LatDeg,
		Longitude:   fix.LonDeg,
		Altitude:    fix.AltKm,
		MeanMotion:  rec.MeanMotion,
		Inclination: rec.Inclination,
		Priority:    risk.Classify(rec),
	}
}
