// Package vrchat looks up public user data from the VRChat API.
//
// Only the display name is needed: it is the one field of a link record that
// changes after verification.  Requests are throttled client-side because the
// upstream API bans aggressive callers.
package vrchat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrUserNotFound = errors.New("vrchat user not found")
	ErrUnavailable  = errors.New("vrchat api unavailable")
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.vrchat.cloud/api/1"

// Config controls the client.  Zero values pick sane defaults.
type Config struct {
	BaseURL           string
	APIKey            string
	AuthCookie        string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// User is the subset of the VRChat user object we read.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "vrclink/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "vrchat base url")
	}
	return &Client{
		base:    u,
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// GetUser fetches the user with the given usr_ id.
func (c *Client) GetUser(ctx context.Context, vrchatID string) (User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return User{}, errors.Wrap(err, "vrchat rate limit")
	}

	target := c.base.ResolveReference(&url.URL{Path: "users/" + vrchatID})
	q := target.Query()
	if c.cfg.APIKey != "" {
		q.Set("apiKey", c.cfg.APIKey)
	}
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return User{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.AuthCookie != "" {
		req.AddCookie(&http.Cookie{Name: "auth", Value: c.cfg.AuthCookie})
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		zap.L().Warn("vrchat request failed", zap.String("user", vrchatID), zap.Error(err))
		return User{}, errors.Wrapf(ErrUnavailable, "GET users/%s: %v", vrchatID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return User{}, errors.Wrapf(ErrUserNotFound, "%s", vrchatID)
	default:
		return User{}, errors.Wrapf(ErrUnavailable, "GET users/%s: status %d", vrchatID, resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return User{}, errors.Wrapf(ErrUnavailable, "GET users/%s: decode: %v", vrchatID, err)
	}
	return u, nil
}

// DisplayName returns the current display name for vrchatID.
func (c *Client) DisplayName(ctx context.Context, vrchatID string) (string, error) {
	u, err := c.GetUser(ctx, vrchatID)
	if err != nil {
		return "", err
	}
	return u.DisplayName, nil
}
