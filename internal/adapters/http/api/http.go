// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/tabletriage/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider
	ReviewDependencies

	// Process triages dossiers and returns results in submission order.
	Process(ctx context.Context, dossiers []model.Dossier) ([]model.Result, error)
}

// Server wires HTTP routes for the triage API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	dossiersHandler *DossiersHandler
	reviewHandler   *ReviewHandler
}

// NewServer creates a new API server with all handlers. reviewMaxLimit caps
// GET /review?limit.
func NewServer(deps Dependencies, reviewMaxLimit int, opts ...DossiersOption) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		dossiersHandler: NewDossiersHandler(deps, opts...),
		reviewHandler:   NewReviewHandler(deps, reviewMaxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/dossiers", MetricsMiddleware(s.dossiersHandler.HandlePostDossiers, "dossiers"))
	mux.HandleFunc("/review", MetricsMiddleware(s.reviewHandler.HandleGetReview, "review"))
	mux.HandleFunc("/review/", MetricsMiddleware(s.reviewHandler.HandleGetReviewEntry, "review_entry"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
