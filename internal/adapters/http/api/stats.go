package api

import (
	"maps"
	"net/http"
	"time"
)

// StatsProvider reports service counters.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler serves the provider's counters plus process uptime.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := make(map[string]any)
	maps.Copy(out, h.provider.GetStats())
	out["uptimeSeconds"] = int64(time.Since(h.started).Seconds())
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, out)
}
