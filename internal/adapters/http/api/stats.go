package api

import (
	"context"
	"net/http"
)

// StatsProvider reports dispatcher and store counters.
type StatsProvider interface {
	Stats(ctx context.Context) map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(p StatsProvider) *StatsHandler {
	return &StatsHandler{provider: p}
}

// HandleStats writes the provider's counters. They change with every intent,
// so the response is never cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.provider.Stats(r.Context()))
}
