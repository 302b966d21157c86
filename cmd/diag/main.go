package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/pipeline"
	"github.com/rahimhussain95/DarkNet/internal/position"
	"github.com/rahimhussain95/DarkNet/internal/store"
)

// Sanity check: dumps per-object position and priority from the newest
// snapshot, or from one live fetch+aggregate run with -live, flagging
// anything outside plausible LEO bounds.
func main() {
	dir := flag.String("dir", "/tmp/darknet/debris", "snapshot directory")
	live := flag.Bool("live", false, "fetch from space-track instead of reading a snapshot")
	limit := flag.Int("limit", 20, "query row limit in live mode")
	flag.Parse()

	var entry *store.Entry
	if *live {
		entry = liveFetch(*limit)
	} else {
		snapshots := store.NewSnapshots(*dir, 3)
		e, err := snapshots.LoadLatest()
		if err != nil {
			fmt.Println("ERROR loading snapshot:", err)
			os.Exit(1)
		}
		entry = e
	}

	age := time.Since(entry.FetchedAt)
	fmt.Printf("Loaded %d objects, fetched %v (%.0fs ago)\n",
		len(entry.Objects), entry.FetchedAt.Format(time.RFC3339), age.Seconds())

	suspect := 0
	for _, obj := range entry.Objects {
		marker := ""
		if obj.Altitude < 160 || obj.Altitude > 2000 {
			marker = "  <-- altitude outside LEO band"
			suspect++
		}
		fmt.Printf("  %-10s %-24s lat=%8.3f lon=%9.3f alt=%8.1fkm  %s%s\n",
			obj.NoradID, obj.Name, obj.Latitude, obj.Longitude, obj.Altitude, obj.Priority, marker)
	}

	if len(entry.Objects) >= 2 {
		a := entry.Objects[0]
		b := entry.Objects[1]
		d := position.Distance(
			position.Fix{LatDeg: a.Latitude, LonDeg: a.Longitude, AltKm: a.Altitude},
			position.Fix{LatDeg: b.Latitude, LonDeg: b.Longitude, AltKm: b.Altitude},
		)
		fmt.Printf("\nGround distance between first two objects: %.1f km\n", d)
	}

	fmt.Printf("\nSuspect objects: %d of %d\n", suspect, len(entry.Objects))
	if suspect > 0 {
		os.Exit(1)
	}
}

func liveFetch(limit int) *store.Entry {
	godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	user := os.Getenv("SPACE_TRACK_USER")
	pass := os.Getenv("SPACE_TRACK_PASS")
	if user == "" || pass == "" {
		fmt.Println("ERROR: SPACE_TRACK_USER and SPACE_TRACK_PASS are required for -live")
		os.Exit(1)
	}

	client := catalog.NewClient(catalog.Config{
		Username: user,
		Password: pass,
		Limit:    limit,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := client.FetchDebris(ctx)
	if err != nil {
		fmt.Println("ERROR fetching catalog:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	agg := pipeline.NewAggregator(position.NewResolver(), runtime.NumCPU(), logger)
	objects, err := agg.Aggregate(ctx, records, now)
	if err != nil {
		fmt.Println("ERROR aggregating records:", err)
		os.Exit(1)
	}
	return &store.Entry{Objects: objects, FetchedAt: now}
}
