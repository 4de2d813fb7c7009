package vrchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "usr_aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"

func TestDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/users/"+testID, r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "vrclink-test", r.UserAgent())
		c, err := r.Cookie("auth")
		require.NoError(t, err)
		assert.Equal(t, "cookie", c.Value)
		_, _ = w.Write([]byte(`{"id":"` + testID + `","displayName":"Alice"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:    srv.URL + "/api/1",
		APIKey:     "key",
		AuthCookie: "cookie",
		UserAgent:  "vrclink-test",
	})
	require.NoError(t, err)

	name, err := c.DisplayName(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestGetUser_Statuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrUserNotFound},
		{http.StatusTooManyRequests, ErrUnavailable},
		{http.StatusInternalServerError, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = c.GetUser(context.Background(), testID)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestGetUser_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.GetUser(context.Background(), testID)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGetUser_RateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","displayName":"x"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, RequestsPerSecond: 0.01, Burst: 1})
	require.NoError(t, err)

	_, err = c.GetUser(context.Background(), testID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetUser(ctx, testID)
	assert.Error(t, err, "second call must wait for a token and hit the deadline")
}
