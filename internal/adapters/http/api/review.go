package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/tabletriage/internal/adapters/repository"
	service "github.com/okian/tabletriage/internal/app"
)

const defaultReviewMaxLimit = 100

// ReviewDependencies reads the low-confidence review queue.
type ReviewDependencies interface {
	Review(ctx context.Context, n int) ([]repository.Entry, error)
	ReviewPosition(ctx context.Context, source string, tableIndex int) (repository.Entry, error)
}

// ReviewHandler serves the review queue.
type ReviewHandler struct {
	deps     ReviewDependencies
	maxLimit int
}

// NewReviewHandler creates a new review handler. A non-positive maxLimit
// falls back to 100.
func NewReviewHandler(deps ReviewDependencies, maxLimit int) *ReviewHandler {
	if maxLimit < 1 {
		maxLimit = defaultReviewMaxLimit
	}
	return &ReviewHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetReview handles GET /review?limit=N.
func (h *ReviewHandler) HandleGetReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_review"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Review(r.Context(), n)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetReviewEntry handles GET /review/{source}/{table_index}. The
// source may itself contain slashes; the last segment is the index.
func (h *ReviewHandler) HandleGetReviewEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_review_entry"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/review/")
	cut := strings.LastIndex(path, "/")
	if cut <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	idx, err := strconv.Atoi(path[cut+1:])
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entry, err := h.deps.ReviewPosition(r.Context(), path[:cut], idx)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *ReviewHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	}
}
