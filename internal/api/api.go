// internal/api/api.go
//
// Staff-facing JSON API.
//
// Routes
// ------
//
//	GET  /healthz                               liveness, unauthenticated
//	GET  /metrics                               Prometheus, unauthenticated
//	GET  /v1/profiles/{discordID}               cached profile
//	GET  /v1/profiles/{discordID}/status        verified + banned flags
//	POST /v1/profiles/{discordID}/verify        body {vrchat_id, vrchat_name}
//	POST /v1/profiles/{discordID}/unverify
//	POST /v1/profiles/{discordID}/ban
//	POST /v1/profiles/{discordID}/unban
//	POST /v1/profiles/{discordID}/refresh-name
//	GET  /v1/profiles/{discordID}/history       audit rows, newest first
//	GET  /v1/shortcodes/{vrchatID}              verification challenge code
//	GET  /v1/instances?q=…                      instance descriptor
//
// Everything under /v1 needs a staff JWT.  Mutations additionally pass the
// ACL check when a database is configured.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/vrclink/internal/acl"
	"github.com/yanizio/vrclink/internal/audit"
	"github.com/yanizio/vrclink/internal/auth"
	"github.com/yanizio/vrclink/internal/middleware"
	"github.com/yanizio/vrclink/internal/profile"
	"github.com/yanizio/vrclink/internal/requestinfo"
)

// Profiles is the read side.  profilecache.Cache satisfies it.
type Profiles interface {
	GetProfile(ctx context.Context, discordID string) (profile.Profile, error)
	IsVerified(ctx context.Context, discordID string) (bool, error)
	IsBanned(ctx context.Context, discordID string) (bool, error)
}

// Transitions is the write side.  verification.Service satisfies it.
type Transitions interface {
	Verify(ctx context.Context, discordID, vrchatID, vrchatName, actor string) error
	Unverify(ctx context.Context, discordID, actor string) error
	Ban(ctx context.Context, discordID, actor string) error
	Unban(ctx context.Context, discordID, actor string) error
	RefreshName(ctx context.Context, discordID, actor string) (string, error)
}

// History lists audit rows.  audit.Store satisfies it.
type History interface {
	ListByDiscordID(ctx context.Context, discordID string, limit int) ([]audit.Event, error)
}

// Deps are the collaborators the router needs.  History, ACL, and Enricher
// are optional.
type Deps struct {
	Profiles    Profiles
	Transitions Transitions
	History     History
	ACL         *sqlx.DB
	Verifier    *auth.Verifier
	Enricher    *requestinfo.Enricher
	ForceHTTPS  bool
	Timeout     time.Duration
}

// NewRouter builds the API handler.
func NewRouter(d Deps) http.Handler {
	h := &handlers{d: d}
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog)
	r.Use(chimw.Recoverer)
	if d.ForceHTTPS {
		r.Use(middleware.ForceHTTPS("/healthz", "/metrics"))
	}
	r.Use(middleware.Security)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// A typed nil *sqlx.DB must not reach acl as a non-nil interface.
	var aclDB sqlx.QueryerContext
	if d.ACL != nil {
		aclDB = d.ACL
	}
	guard := func(action string) func(http.Handler) http.Handler {
		return acl.RequirePermission(aclDB, action)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(d.Verifier.Middleware)
		if d.Enricher != nil {
			v1.Use(d.Enricher.Middleware)
		}
		v1.Use(chimw.Timeout(d.Timeout))

		v1.Route("/profiles/{discordID}", func(p chi.Router) {
			p.Use(requireDiscordID)
			p.Get("/", h.getProfile)
			p.Get("/status", h.getStatus)
			p.Get("/history", h.getHistory)
			p.With(guard(audit.ActionVerify)).Post("/verify", h.postVerify)
			p.With(guard(audit.ActionUnverify)).Post("/unverify", h.postUnverify)
			p.With(guard(audit.ActionBan)).Post("/ban", h.postBan)
			p.With(guard(audit.ActionUnban)).Post("/unban", h.postUnban)
			p.With(guard(audit.ActionRename)).Post("/refresh-name", h.postRefreshName)
		})
		v1.Get("/shortcodes/{vrchatID}", h.getShortCode)
		v1.Get("/instances", h.getInstance)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	return r
}
