package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPExtract(t *testing.T) {
	c, err := NewClientIP(nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct public", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"forwarded by untrusted peer is ignored", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"forwarded by trusted proxy", "10.0.0.5:5000", "198.51.100.1, 10.0.0.5", "", "198.51.100.1"},
		{"real ip from trusted proxy", "127.0.0.1:5000", "", "198.51.100.2", "198.51.100.2"},
		{"garbage forwarded header", "10.0.0.5:5000", "not-an-ip", "", "10.0.0.5"},
		{"no port", "198.51.100.9", "", "", "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, c.Extract(r))
		})
	}
}

func TestNewClientIPRejectsBadCIDR(t *testing.T) {
	_, err := NewClientIP([]string{"10.0.0.0/8", "nope"})
	assert.Error(t, err)
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ledger", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := BearerAuth("s3cret", nil)(ok)

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Basic s3cret", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusNoContent},
		{"bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		assert.Equal(t, tt.want, rr.Code, "header %q", tt.header)
	}

	open := BearerAuth("", nil)(ok)
	rr := httptest.NewRecorder()
	open.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
