package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/pipeline"
	"github.com/rahimhussain95/DarkNet/internal/position"
	"github.com/rahimhussain95/DarkNet/internal/risk"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// fakeClock is an adjustable time source for deterministic TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func testObjects() []pipeline.Object {
	return []pipeline.Object{
		{Name: "ISS DEB", NoradID: "25544", Latitude: 51.2, Longitude: -12.4, Altitude: 417.3, MeanMotion: 15.5, Inclination: 51.64, Priority: risk.Medium},
		{Name: "FENGYUN 1C DEB", NoradID: "31113", Latitude: -8.9, Longitude: 101.2, Altitude: 742.1, MeanMotion: 14.1, Inclination: 98.8, Priority: risk.High},
	}
}

func newTestCache(cfg Config, fn RefreshFunc) (*Cache, *fakeClock) {
	clock := newFakeClock()
	c := New(cfg, fn, nil, testLogger)
	c.now = clock.Now
	return c, clock
}

// TestReadTTL verifies read semantics across the TTL boundary.
func TestReadTTL(t *testing.T) {
	cfg := Config{TTL: time.Hour}
	c, clock := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		return testObjects(), nil
	})

	// Empty cache: stale, Read returns nil.
	if !c.IsStale() {
		t.Error("empty cache should be stale")
	}
	if c.Read() != nil {
		t.Error("Read on empty cache should return nil")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Any read within TTL returns the entry.
	clock.Advance(59 * time.Minute)
	e := c.Read()
	if e == nil {
		t.Fatal("Read within TTL returned nil")
	}
	if len(e.Objects) != 2 {
		t.Errorf("entry has %d objects, want 2", len(e.Objects))
	}
	if c.IsStale() {
		t.Error("cache should be fresh at 59 minutes")
	}

	// At exactly TTL the entry expires (age >= TTL).
	clock.Advance(1 * time.Minute)
	if c.Read() != nil {
		t.Error("Read at TTL boundary should return nil")
	}
	if !c.IsStale() {
		t.Error("cache should be stale at TTL")
	}
}

// TestRefreshFailurePreservesEntry verifies a failed refresh leaves the
// prior entry untouched and surfaces the error.
func TestRefreshFailurePreservesEntry(t *testing.T) {
	var fail atomic.Bool
	cfg := Config{TTL: time.Hour}
	c, clock := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return testObjects(), nil
	})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	before := c.entry.Load()

	fail.Store(true)
	clock.Advance(10 * time.Minute)
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	after := c.entry.Load()
	if after != before {
		t.Error("failed refresh replaced the entry")
	}
	if c.Read() == nil {
		t.Error("still-fresh entry should remain readable after failed refresh")
	}

	stats := c.Stats()
	if stats.Refreshes != 1 || stats.Failures != 1 {
		t.Errorf("stats = %+v, want 1 refresh and 1 failure", stats)
	}
}

// TestRefreshTimeoutNeverCommits verifies an expired refresh deadline
// fails the whole run: a refresh that could not aggregate the full batch
// must not store a truncated object set as a fresh entry.
func TestRefreshTimeoutNeverCommits(t *testing.T) {
	const line1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	const line2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"

	records := make([]catalog.Record, 100)
	for i := range records {
		records[i] = catalog.Record{
			Name:     "ISS DEB",
			NoradID:  "25544" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)),
			TLELine1: line1, TLELine2: line2,
			MeanMotion: 15.5, Periapsis: 415,
		}
	}
	agg := pipeline.NewAggregator(position.NewResolver(), 4, testLogger)

	cfg := Config{TTL: time.Hour, RefreshTimeout: time.Nanosecond}
	c, _ := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		return agg.Aggregate(ctx, records, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC))
	})

	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from expired refresh deadline")
	}
	if e := c.entry.Load(); e != nil {
		t.Fatalf("truncated refresh committed an entry with %d objects", len(e.Objects))
	}
	if c.Read() != nil {
		t.Error("Read served an entry after a failed refresh")
	}
	if stats := c.Stats(); stats.Refreshes != 0 || stats.Failures != 1 {
		t.Errorf("stats = %+v, want 0 refreshes and 1 failure", stats)
	}
}

// TestGetOrRefreshSingleFlight verifies N concurrent stale observers cause
// exactly one upstream fetch and all receive the same result.
func TestGetOrRefreshSingleFlight(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})

	cfg := Config{TTL: time.Hour}
	c, _ := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		calls.Add(1)
		<-release // hold the first refresh until all callers are queued
		return testObjects(), nil
	})

	const n = 16
	entries := make([]*Entry, n)
	errs := make([]error, n)

	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			entries[i], errs[i] = c.GetOrRefresh(context.Background())
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond) // let the callers pile up on the lock
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("refresh ran %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if entries[i] == nil || len(entries[i].Objects) != 2 {
			t.Fatalf("caller %d: inconsistent entry %+v", i, entries[i])
		}
	}
}

// TestGetOrRefreshStaleGrace verifies the explicit stale-on-error policy:
// within TTL+grace a stale entry is served, past it the error surfaces.
func TestGetOrRefreshStaleGrace(t *testing.T) {
	var fail atomic.Bool
	cfg := Config{TTL: time.Hour, StaleGrace: 30 * time.Minute}
	c, clock := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return testObjects(), nil
	})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	fail.Store(true)

	// Stale but within grace: serve old data.
	clock.Advance(70 * time.Minute)
	e, err := c.GetOrRefresh(context.Background())
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if e == nil || len(e.Objects) != 2 {
		t.Fatalf("stale fallback entry wrong: %+v", e)
	}

	// Past TTL+grace: fail closed.
	clock.Advance(25 * time.Minute)
	if _, err := c.GetOrRefresh(context.Background()); err == nil {
		t.Fatal("expected error past the grace window")
	}
}

// TestGetOrRefreshNoEntryError verifies an empty cache plus failed refresh
// surfaces the error.
func TestGetOrRefreshNoEntryError(t *testing.T) {
	cfg := Config{TTL: time.Hour, StaleGrace: time.Hour}
	c, _ := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		return nil, errors.New("upstream down")
	})

	if _, err := c.GetOrRefresh(context.Background()); err == nil {
		t.Fatal("expected error with no cached entry")
	}
}

// TestRestore verifies a restored snapshot entry obeys its own timestamp.
func TestRestore(t *testing.T) {
	cfg := Config{TTL: time.Hour}
	c, clock := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		return nil, errors.New("should not be called")
	})

	c.Restore(&Entry{Objects: testObjects(), FetchedAt: clock.Now().Add(-30 * time.Minute)})
	if c.Read() == nil {
		t.Error("restored half-aged entry should be fresh")
	}

	c.Restore(&Entry{Objects: testObjects(), FetchedAt: clock.Now().Add(-2 * time.Hour)})
	if c.Read() != nil {
		t.Error("restored expired entry should read as nil")
	}
}

// TestSnapshotRoundTrip verifies save/load and pruning.
func TestSnapshotRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	snaps := NewSnapshots(dir, 2)

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		e := &Entry{Objects: testObjects()[:1], FetchedAt: base.Add(time.Duration(i) * time.Hour)}
		if i == 3 {
			e.Objects = testObjects() // newest has both objects
		}
		if err := snaps.Save(e); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	// Pruned to maxFiles.
	files, err := snaps.listFiles()
	if err != nil {
		t.Fatalf("listFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %d snapshot files, want 2", len(files))
	}

	got, err := snaps.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if !got.FetchedAt.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("loaded fetched_at %v, want %v", got.FetchedAt, base.Add(3*time.Hour))
	}
	if len(got.Objects) != 2 {
		t.Fatalf("loaded %d objects, want 2", len(got.Objects))
	}
	if got.Objects[1].Priority != risk.High {
		t.Errorf("priority round trip: got %v, want %v", got.Objects[1].Priority, risk.High)
	}
}

// TestSnapshotEmptyDir verifies LoadLatest on a missing dir errors cleanly.
func TestSnapshotEmptyDir(t *testing.T) {
	snaps := NewSnapshots(filepath.Join(t.TempDir(), "never-created"), 2)
	if _, err := snaps.LoadLatest(); err == nil {
		t.Fatal("expected error for missing snapshot dir")
	}
}

// TestStartInterval verifies the background loop refreshes on its interval.
func TestStartInterval(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{TTL: time.Hour, Interval: 20 * time.Millisecond}
	c, _ := newTestCache(cfg, func(ctx context.Context) ([]pipeline.Object, error) {
		calls.Add(1)
		return testObjects(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx)

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d refreshes before deadline", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
}
