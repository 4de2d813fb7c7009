package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestSecurity_SetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS("/healthz")(ok)

	cases := []struct {
		name   string
		target string
		setup  func(*http.Request)
		want   int
	}{
		{"plain http redirects", "http://api.example.com/v1/x?q=1", nil, http.StatusPermanentRedirect},
		{"tls passes", "https://api.example.com/v1/x", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, http.StatusOK},
		{"proxy https passes", "http://api.example.com/v1/x", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, http.StatusOK},
		{"localhost passes", "http://localhost:8080/v1/x", nil, http.StatusOK},
		{"loopback ip passes", "http://127.0.0.1:8080/v1/x", nil, http.StatusOK},
		{"exempt path passes", "http://api.example.com/healthz", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusPermanentRedirect {
				assert.Equal(t, "https://api.example.com/v1/x?q=1", rec.Header().Get("Location"))
			}
		})
	}
}
