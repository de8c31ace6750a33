package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tabletriage/internal/adapters/http/api"
	"github.com/okian/tabletriage/internal/adapters/mq/queue"
	"github.com/okian/tabletriage/internal/adapters/repository"
	service "github.com/okian/tabletriage/internal/app"
	"github.com/okian/tabletriage/internal/domain/model"
)

const body = `{
  "doc-1": {"filename": "doc-1.pdf", "tables": [{"page_number": 3, "table_data": [{"col_0": "a<b"}]}]},
  "doc-2": {"tables": []}
}`

type mockDependencies struct {
	err       error
	reviewErr error
	got       []model.Dossier
	stats     map[string]any
	entries   []repository.Entry
	lastLimit int
	lastID    string
}

func (m *mockDependencies) Process(_ context.Context, ds []model.Dossier) ([]model.Result, error) {
	m.got = ds
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Result, len(ds))
	for i, d := range ds {
		out[i] = model.Result{
			Source:         d.Source,
			ProcessedCount: len(d.Tables),
			Processed:      []model.NormalizedTable{},
			Skipped:        []model.SkipRecord{},
		}
	}
	return out, nil
}

func (m *mockDependencies) GetStats() map[string]any { return m.stats }

func (m *mockDependencies) Review(_ context.Context, n int) ([]repository.Entry, error) {
	m.lastLimit = n
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	return m.entries[:min(n, len(m.entries))], nil
}

func (m *mockDependencies) ReviewPosition(_ context.Context, source string, idx int) (repository.Entry, error) {
	m.lastID = repository.ItemID(source, idx)
	if m.reviewErr != nil {
		return repository.Entry{}, m.reviewErr
	}
	for _, e := range m.entries {
		if e.ID == m.lastID {
			return e, nil
		}
	}
	return repository.Entry{}, repository.ErrNotFound
}

const reviewLimit = 10

func serve(deps api.Dependencies, method, path, payload string, opts ...api.DossiersOption) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps, reviewLimit, opts...).Register(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{stats: map[string]any{"started": true, "dossiers": 2}}

		Convey("Then the health endpoint serves Prometheus metrics", func() {
			w := serve(deps, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "triage_engine_")
		})

		Convey("Then the stats endpoint returns the provider's map", func() {
			w := serve(deps, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got["started"], ShouldEqual, true)
			So(got["dossiers"], ShouldEqual, float64(2))
			So(got, ShouldContainKey, "uptimeSeconds")
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})

		Convey("Then non-GET stats requests are not found", func() {
			w := serve(deps, http.MethodPost, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then unknown paths are not found", func() {
			w := serve(deps, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDossiersHandler(t *testing.T) {
	Convey("Given a dossiers endpoint", t, func() {
		deps := &mockDependencies{}

		Convey("When a valid document is posted", func() {
			w := serve(deps, http.MethodPost, "/dossiers", body)

			Convey("Then every top-level key is triaged in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.got, ShouldHaveLength, 2)
				So(deps.got[0].Source, ShouldEqual, "doc-1")
				So(deps.got[0].Filename, ShouldEqual, "doc-1.pdf")
				So(deps.got[1].Source, ShouldEqual, "doc-2")

				var results []model.Result
				So(json.Unmarshal(w.Body.Bytes(), &results), ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].ProcessedCount, ShouldEqual, 1)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			})

			Convey("Then the body is indented", func() {
				So(w.Body.String(), ShouldStartWith, "[\n  {")
			})
		})

		Convey("When the body is not a JSON object", func() {
			w := serve(deps, http.MethodPost, "/dossiers", `[1, 2]`)

			Convey("Then a bad request is returned before processing", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code": "bad_request"`)
				So(deps.got, ShouldBeNil)
			})
		})

		Convey("When the body exceeds the limit", func() {
			w := serve(deps, http.MethodPost, "/dossiers", body, api.WithMaxBodyBytes(16))

			Convey("Then the request is rejected as too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		Convey("When the method is not POST", func() {
			w := serve(deps, http.MethodGet, "/dossiers", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		cases := []struct {
			name string
			err  error
			code int
		}{
			{"a full queue", fmt.Errorf("submit doc-1: %w", queue.ErrFull), http.StatusTooManyRequests},
			{"a stopped service", service.ErrNotStarted, http.StatusServiceUnavailable},
			{"a closed queue", queue.ErrClosed, http.StatusServiceUnavailable},
			{"a cancelled request", context.Canceled, http.StatusServiceUnavailable},
			{"an unexpected failure", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			Convey("When processing fails with "+tc.name, func() {
				deps.err = tc.err
				w := serve(deps, http.MethodPost, "/dossiers", body)

				Convey(fmt.Sprintf("Then status %d is returned", tc.code), func() {
					So(w.Code, ShouldEqual, tc.code)
				})
			})
		}
	})
}

func TestReviewHandler(t *testing.T) {
	Convey("Given a review queue with two entries", t, func() {
		deps := &mockDependencies{entries: []repository.Entry{
			{Rank: 1, Item: repository.Item{ID: "a/b.json#2", Source: "a/b.json", TableIndex: 2, TableType: "GENERIC", Confidence: 0.2}},
			{Rank: 2, Item: repository.Item{ID: "doc#0", Source: "doc", TableIndex: 0, TableType: "FS", Confidence: 0.7}},
		}}

		Convey("When the lowest entries are requested", func() {
			w := serve(deps, http.MethodGet, "/review?limit=5", "")

			Convey("Then they are returned in rank order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 5)
				var got []repository.Entry
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].Rank, ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, "a/b.json#2")
			})
		})

		Convey("When the limit is missing or invalid", func() {
			for _, path := range []string{"/review", "/review?limit=0", "/review?limit=x"} {
				w := serve(deps, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code": "bad_request"`)
			}
		})

		Convey("When the limit exceeds the configured maximum", func() {
			w := serve(deps, http.MethodGet, fmt.Sprintf("/review?limit=%d", reviewLimit+1), "")

			Convey("Then limit_exceeded is reported", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code": "limit_exceeded"`)
			})
		})

		Convey("When a single entry is looked up by a source containing slashes", func() {
			w := serve(deps, http.MethodGet, "/review/a/b.json/2", "")

			Convey("Then the last segment is the table index", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastID, ShouldEqual, "a/b.json#2")
				var got repository.Entry
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Confidence, ShouldEqual, 0.2)
			})
		})

		Convey("When the entry does not exist", func() {
			w := serve(deps, http.MethodGet, "/review/doc/9", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the index is malformed", func() {
			So(serve(deps, http.MethodGet, "/review/doc/x", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(deps, http.MethodGet, "/review/doc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is not started", func() {
			deps.reviewErr = service.ErrNotStarted
			So(serve(deps, http.MethodGet, "/review?limit=1", "").Code, ShouldEqual, http.StatusServiceUnavailable)
			So(serve(deps, http.MethodGet, "/review/doc/0", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the method is not GET", func() {
			So(serve(deps, http.MethodPost, "/review?limit=1", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given kinded API errors", t, func() {
		cause := errors.New("cause")
		wrapped := api.WrapKind("api.op", api.ErrBadRequest, cause)
		bare := api.NewKind("api.op", api.ErrBackpressure)

		Convey("Then errors.Is matches the kind and the cause", func() {
			So(errors.Is(wrapped, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(wrapped, cause), ShouldBeTrue)
			So(errors.Is(wrapped, api.ErrBackpressure), ShouldBeFalse)
			So(errors.Is(bare, api.ErrBackpressure), ShouldBeTrue)
		})

		Convey("Then messages name the operation", func() {
			So(wrapped.Error(), ShouldEqual, "api.op: bad request: cause")
			So(bare.Error(), ShouldEqual, "api.op: backpressure")
		})
	})
}
