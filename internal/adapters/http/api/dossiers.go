package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/tabletriage/internal/adapters/mq/queue"
	service "github.com/okian/tabletriage/internal/app"
	"github.com/okian/tabletriage/internal/surgeon"
)

const defaultMaxBodyBytes = 32 << 20

// DossiersOption configures the DossiersHandler.
type DossiersOption func(*DossiersHandler)

// WithMaxBodyBytes caps the accepted request body.
func WithMaxBodyBytes(n int64) DossiersOption {
	return func(h *DossiersHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// DossiersHandler triages legacy input documents posted over HTTP.
type DossiersHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewDossiersHandler creates a new dossiers handler.
func NewDossiersHandler(deps Dependencies, opts ...DossiersOption) *DossiersHandler {
	h := &DossiersHandler{deps: deps, maxBody: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePostDossiers handles POST /dossiers. The body is a legacy input
// document; the response is the array of results, one per top-level key.
func (h *DossiersHandler) HandlePostDossiers(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_dossiers"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	dossiers, err := surgeon.ParseInput(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	results, err := h.deps.Process(r.Context(), dossiers)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, results)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	}
}
