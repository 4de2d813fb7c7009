package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	surfer "github.com/avct/uasurfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.112 Safari/537.36"

func TestMiddleware_AttachesInfo(t *testing.T) {
	e, err := NewEnricher("")
	require.NoError(t, err)

	var got *Info
	h := e.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", chromeMac)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "203.0.113.9", got.Geo.IP.String())
	assert.Equal(t, "Chrome", got.UA.Browser)
	assert.Equal(t, "Desktop", got.UA.Device)
	assert.False(t, got.Timestamp.IsZero())

	s := got.Summary()
	assert.True(t, strings.HasPrefix(s, "ip=203.0.113.9"), s)
	assert.Contains(t, s, "ua=Chrome/125")
}

func TestClientIP_Fallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req).String())

	req.Header.Set("X-Real-Ip", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req).String())
}

func TestSummary_NilAndEmpty(t *testing.T) {
	var i *Info
	assert.Equal(t, "", i.Summary())
	assert.Equal(t, "", (&Info{}).Summary())
	assert.Equal(t, UA{}, parseUA(""))
}

func TestVersionToString(t *testing.T) {
	assert.Equal(t, "", versionToString(surfer.Version{}))
	assert.Equal(t, "17", versionToString(surfer.Version{Major: 17}))
	assert.Equal(t, "17.3", versionToString(surfer.Version{Major: 17, Minor: 3}))
	assert.Equal(t, "17.3.1", versionToString(surfer.Version{Major: 17, Minor: 3, Patch: 1}))
}

func TestNewEnricher_MissingDB(t *testing.T) {
	_, err := NewEnricher("/nonexistent/GeoLite2-City.mmdb")
	assert.Error(t, err)

	e, err := NewEnricher("")
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}
