package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter(skip ...string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware(skip...))
	r.Get("/collections", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"collections":[]}`))
	})
	r.Get("/conformance", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Delete("/_mgmt/cache", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/_mgmt/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"PONG"}`))
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr.Code
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/collections", "200"))
	if code := serve(r, "GET", "/collections?bbox=0,0,1,1&q=ice"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/collections", "200"))
	if after-before != 1 {
		t.Errorf("http_requests_total delta = %f, want 1", after-before)
	}
	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := newRouter()

	tests := []struct {
		method string
		path   string
		status string
	}{
		{"GET", "/conformance", "502"},
		{"DELETE", "/_mgmt/cache", "204"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(tc.method, tc.path, tc.status))
			serve(r, tc.method, tc.path)
			after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(tc.method, tc.path, tc.status))
			if after-before != 1 {
				t.Errorf("%s %s status %s delta = %f", tc.method, tc.path, tc.status, after-before)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoutesShareOneLabel(t *testing.T) {
	r := newRouter()

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	serve(r, "GET", "/wp-admin/setup.php")
	serve(r, "GET", "/.env")
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	if after-before != 2 {
		t.Errorf("unmatched delta = %f, want 2", after-before)
	}
}

func TestMiddleware_SkipsProbes(t *testing.T) {
	r := newRouter("/_mgmt/ping")

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/_mgmt/ping", "200"))
	if code := serve(r, "GET", "/_mgmt/ping"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/_mgmt/ping", "200"))
	if after != before {
		t.Errorf("skipped path was counted: %f -> %f", before, after)
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/collections", func(w http.ResponseWriter, _ *http.Request) {
		during = testutil.ToFloat64(HTTPRequestsInFlight)
		w.WriteHeader(http.StatusOK)
	})

	base := testutil.ToFloat64(HTTPRequestsInFlight)
	serve(r, "GET", "/collections")

	if during != base+1 {
		t.Errorf("in flight during request = %f, want %f", during, base+1)
	}
	if got := testutil.ToFloat64(HTTPRequestsInFlight); got != base {
		t.Errorf("in flight after request = %f, want %f", got, base)
	}
}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}

	_, _ = sw.Write([]byte("partial"))
	sw.WriteHeader(http.StatusInternalServerError)

	if sw.status != http.StatusOK {
		t.Errorf("status = %d, want 200 after body was written", sw.status)
	}
	if sw.Unwrap() != rr {
		t.Error("Unwrap should return the underlying writer")
	}
}
