package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"), "got %q", seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "upstream-1", rr.Header().Get(RequestIDHeader))
}

func TestMiddlewareObservesRoute(t *testing.T) {
	type observation struct {
		route string
		code  int
	}
	var got []observation
	observe := func(route string, code int, _ time.Duration) {
		got = append(got, observation{route, code})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ledger/{ref}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, observe).Middleware(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ledger/CAMP-1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, []observation{
		{"GET /api/ledger/{ref}", http.StatusNotFound},
		{"unmatched", http.StatusNotFound},
	}, got)
}
