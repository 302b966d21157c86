package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/store"
)

// debrisResponse is the payload of GET /api/v1/debris.
type debrisResponse struct {
	Objects   any       `json:"objects"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// debrisHandler serves the cached result set, refreshing lazily when stale.
func debrisHandler(logger *slog.Logger, cache *store.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := cache.GetOrRefresh(r.Context())
		if err != nil {
			writeFailure(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, debrisResponse{
			Objects:   entry.Objects,
			Count:     len(entry.Objects),
			FetchedAt: entry.FetchedAt,
			Stale:     cache.IsStale(),
		})
	}
}

// refreshHandler forces a refresh regardless of staleness.
func refreshHandler(logger *slog.Logger, cache *store.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cache.Refresh(r.Context()); err != nil {
			writeFailure(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"refreshed": true,
			"objects":   cache.Stats().Objects,
		})
	}
}

// statsHandler reports cache counters.
func statsHandler(cache *store.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cache.Stats())
	}
}

// failureStage classifies a refresh error into the pipeline stage that
// produced it, so clients can tell a credential problem from
// an upstream outage from a processing bug.
func failureStage(err error) (stage string, status int) {
	var authErr *catalog.AuthError
	if errors.As(err, &authErr) {
		return "auth", http.StatusBadGateway
	}
	var fetchErr *catalog.FetchError
	if errors.As(err, &fetchErr) {
		return "fetch", http.StatusGatewayTimeout
	}
	return "process", http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, logger *slog.Logger, err error) {
	stage, status := failureStage(err)
	logger.Error("request failed", "stage", stage, "error", err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"stage": stage,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
