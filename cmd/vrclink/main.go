// cmd/vrclink/main.go
//
// vrclink – Discord ⇄ VRChat identity-link service.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Optional Vault client (VAULT_ADDR set) for `vault:` config values.
//
//  3. Load config, then start the daily rotating file logger.
//
//  4. Profile store client → profile cache (TTL, tombstones, evictor).
//
//  5. Optional collaborators, each switched on by its config block:
//
//     • MySQL   – audit trail + staff ACL
//     • Redis   – cross-process transition lock
//     • AMQP    – transition events
//     • GeoIP   – caller geolocation on audit rows
//
//  6. Verification state machine, HTTP API, graceful shutdown on
//     SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/vrclink/internal/api"
	"github.com/yanizio/vrclink/internal/audit"
	"github.com/yanizio/vrclink/internal/auth"
	"github.com/yanizio/vrclink/internal/config"
	"github.com/yanizio/vrclink/internal/database"
	"github.com/yanizio/vrclink/internal/events"
	"github.com/yanizio/vrclink/internal/keylock"
	"github.com/yanizio/vrclink/internal/logger"
	"github.com/yanizio/vrclink/internal/profile"
	"github.com/yanizio/vrclink/internal/profilecache"
	"github.com/yanizio/vrclink/internal/requestinfo"
	"github.com/yanizio/vrclink/internal/server"
	"github.com/yanizio/vrclink/internal/vault"
	"github.com/yanizio/vrclink/internal/verification"
	"github.com/yanizio/vrclink/internal/vrchat"
)

func main() {
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zap.S().Errorw("vrclink exited", "err", err)
		_ = zap.L().Sync()
		log.Fatalf("vrclink: %v", err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Secrets + config ───────────────────────────────────────────
	//
	var resolver config.Resolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx)
		if err != nil {
			return err
		}
		resolver = vc
	}

	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		return err
	}

	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, logger.RunningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 2.  Profile store + cache ──────────────────────────────────────
	//
	store, err := profile.NewHTTPClient(cfg.Store.BaseURL, cfg.Store.Token, cfg.Store.Timeout)
	if err != nil {
		return err
	}
	cache := profilecache.New(store, profilecache.Config{
		TTL:           cfg.Cache.TTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		EvictInterval: cfg.Cache.EvictInterval,
	})
	defer cache.Close()

	opts := []verification.Option{verification.WithUnverifyBans(cfg.Verification.UnverifyBans)}
	deps := api.Deps{
		Profiles:   cache,
		ForceHTTPS: cfg.HTTP.ForceHTTPS,
		Timeout:    cfg.HTTP.RequestTimeout,
	}

	//
	// ── 3.  Optional collaborators ─────────────────────────────────────
	//
	if cfg.Database.DSN != "" {
		db, err := database.OpenWithOptions(ctx, cfg.Database.DSN, cfg.Database.MaxOpen, cfg.Database.MaxIdle)
		if err != nil {
			return err
		}
		defer db.Close()

		trail := audit.NewStore(db)
		if err := trail.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, verification.WithAudit(trail))
		deps.History = trail
		deps.ACL = db
		logOut.Infow("audit trail and staff ACL online")
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts, verification.WithLocker(keylock.NewRedis(rdb, cfg.Redis.LockTTL)))
		logOut.Infow("redis transition lock online", "addr", cfg.Redis.Addr)
	}

	if cfg.AMQP.URL != "" {
		pub := events.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		defer pub.Close()
		opts = append(opts, verification.WithEvents(pub))
		logOut.Infow("transition events enabled", "exchange", cfg.AMQP.Exchange)
	}

	names, err := vrchat.NewClient(vrchat.Config{
		BaseURL:           cfg.VRChat.BaseURL,
		APIKey:            cfg.VRChat.APIKey,
		AuthCookie:        cfg.VRChat.AuthCookie,
		UserAgent:         cfg.VRChat.UserAgent,
		Timeout:           cfg.VRChat.Timeout,
		RequestsPerSecond: cfg.VRChat.RequestsPerSecond,
		Burst:             cfg.VRChat.Burst,
	})
	if err != nil {
		return err
	}
	opts = append(opts, verification.WithNameSource(names))

	enricher, err := requestinfo.NewEnricher(cfg.GeoIP.DBPath)
	if err != nil {
		return err
	}
	defer enricher.Close()
	deps.Enricher = enricher

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	deps.Verifier = verifier

	//
	// ── 4.  State machine + HTTP API ───────────────────────────────────
	//
	deps.Transitions = verification.New(cache, store, opts...)

	srv := server.New(cfg.HTTP.ListenAddr, api.NewRouter(deps), cfg.HTTP.RequestTimeout+5*time.Second)
	return server.Run(ctx, srv, cfg.HTTP.ShutdownTimeout)
}
