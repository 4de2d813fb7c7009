// internal/profile/http.go
//
// REST implementation of Client.
//
// Wire contract
// -------------
//
//	GET /{discord_id}   200 → Profile JSON, 404 → ErrNotFound
//	PUT /               body Link             → 200
//	PUT /{discord_id}   body Patch            → 200
//
// Every request carries "Authorization: Bearer <token>".  Any transport
// failure or unexpected status is wrapped in ErrRemoteUnavailable.  There is
// no retry; the caller's context bounds each call, and the http.Client has
// its own timeout as a backstop.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// HTTPClient talks to the profile store over HTTP.  Safe for concurrent use.
type HTTPClient struct {
	base  *url.URL
	token string
	hc    *http.Client
}

// NewHTTPClient builds a client for baseURL.  timeout ≤ 0 means 10 s.
func NewHTTPClient(baseURL, token string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "profile store url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:  u,
		token: token,
		hc:    &http.Client{Timeout: timeout},
	}, nil
}

// Get fetches one profile.
func (c *HTTPClient) Get(ctx context.Context, discordID string) (Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, discordID, nil)
	if err != nil {
		return Profile{}, err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return Profile{}, ErrNotFound
	default:
		return Profile{}, errors.Wrapf(ErrRemoteUnavailable, "GET %s: status %d", discordID, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, errors.Wrapf(ErrRemoteUnavailable, "GET %s: decode: %v", discordID, err)
	}
	if p.DiscordID == "" {
		p.DiscordID = discordID
	}
	return p, nil
}

// Put writes a full link record.
func (c *HTTPClient) Put(ctx context.Context, l Link) error {
	return c.write(ctx, "", l)
}

// Update writes a partial record.
func (c *HTTPClient) Update(ctx context.Context, discordID string, p Patch) error {
	return c.write(ctx, discordID, p)
}

func (c *HTTPClient) write(ctx context.Context, rel string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode body")
	}
	resp, err := c.do(ctx, http.MethodPut, rel, buf)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrRemoteUnavailable, "PUT /%s: status %d", rel, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, rel string, body []byte) (*http.Response, error) {
	target := c.base.ResolveReference(&url.URL{Path: rel})

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		zap.L().Warn("profile store request failed",
			zap.String("method", method),
			zap.String("path", target.Path),
			zap.Error(err))
		return nil, errors.Wrapf(ErrRemoteUnavailable, "%s %s: %v", method, target.Path, err)
	}
	return resp, nil
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
