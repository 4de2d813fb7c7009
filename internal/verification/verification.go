// Package verification enacts link-state transitions.
//
// States, with Banned overriding everything:
//
//	Unverified ──Verify──▶ Verified ──Unverify──▶ Unverified | Banned
//	     │                     │
//	     └────────Ban──────────┴──▶ Banned ──Unban──▶ Unverified
//
// Preconditions are read through the profile cache.  Writes go straight to
// the store, after which the cache entry is invalidated.  All transitions for
// one Discord id are serialised with a keylock.Locker because the store has no
// conditional write.
package verification

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yanizio/vrclink/internal/audit"
	"github.com/yanizio/vrclink/internal/events"
	"github.com/yanizio/vrclink/internal/keylock"
	"github.com/yanizio/vrclink/internal/metrics"
	"github.com/yanizio/vrclink/internal/profile"
	"github.com/yanizio/vrclink/internal/requestinfo"
)

var (
	ErrAlreadyVerified = errors.New("already verified")
	ErrBanned          = errors.New("banned")
	ErrNotVerified     = errors.New("not verified")
	ErrNotBanned       = errors.New("not banned")
)

// State is the derived link state of a profile.
type State int

const (
	Unverified State = iota
	Verified
	Banned
)

func (s State) String() string {
	switch s {
	case Verified:
		return "verified"
	case Banned:
		return "banned"
	default:
		return "unverified"
	}
}

// StateOf derives the state of p.
func StateOf(p profile.Profile) State {
	switch {
	case p.IsBanned:
		return Banned
	case p.IsVerified:
		return Verified
	default:
		return Unverified
	}
}

// ProfileReader is the read side the state machine needs.  profilecache.Cache
// satisfies it.
type ProfileReader interface {
	GetProfile(ctx context.Context, discordID string) (profile.Profile, error)
	Invalidate(discordID string)
}

// NameSource resolves a VRChat id to its current display name.
type NameSource interface {
	DisplayName(ctx context.Context, vrchatID string) (string, error)
}

// Service runs transitions.  Safe for concurrent use.
type Service struct {
	reader ProfileReader
	store  profile.Client
	locks  keylock.Locker
	audit  audit.Recorder
	events events.Publisher
	names  NameSource
	clock  clockwork.Clock

	unverifyBans bool
}

type Option func(*Service)

// WithLocker replaces the default in-process locker.
func WithLocker(l keylock.Locker) Option { return func(s *Service) { s.locks = l } }

func WithAudit(r audit.Recorder) Option { return func(s *Service) { s.audit = r } }

func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithNameSource(n NameSource) Option { return func(s *Service) { s.names = n } }

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// WithUnverifyBans selects what Unverify writes: true sets is_banned, false
// clears is_verified.
func WithUnverifyBans(b bool) Option { return func(s *Service) { s.unverifyBans = b } }

// New builds a Service.  Unverify bans by default.
func New(reader ProfileReader, store profile.Client, opts ...Option) *Service {
	s := &Service{
		reader:       reader,
		store:        store,
		locks:        keylock.NewLocal(),
		audit:        audit.Nop{},
		events:       events.Nop{},
		clock:        clockwork.NewRealClock(),
		unverifyBans: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UnverifyBans reports the configured Unverify behaviour.
func (s *Service) UnverifyBans() bool { return s.unverifyBans }

// Verify links discordID to vrchatID and marks it verified by actor.
// Fails with ErrBanned or ErrAlreadyVerified without writing.
func (s *Service) Verify(ctx context.Context, discordID, vrchatID, vrchatName, actor string) error {
	return s.transition(ctx, audit.ActionVerify, discordID, actor, func(cur profile.Profile, found bool) (string, error) {
		switch StateOf(cur) {
		case Banned:
			return "", ErrBanned
		case Verified:
			return "", ErrAlreadyVerified
		}
		err := s.store.Put(ctx, profile.Link{
			DiscordID:  discordID,
			VRChatID:   vrchatID,
			VRChatName: vrchatName,
			IsVerified: true,
			VerifiedBy: actor,
		})
		return vrchatID, err
	})
}

// Unverify revokes verification.  Requires Verified, else ErrNotVerified.
func (s *Service) Unverify(ctx context.Context, discordID, actor string) error {
	return s.transition(ctx, audit.ActionUnverify, discordID, actor, func(cur profile.Profile, found bool) (string, error) {
		if StateOf(cur) != Verified {
			return "", ErrNotVerified
		}
		patch := profile.Patch{IsVerified: profile.Bool(false)}
		if s.unverifyBans {
			patch = profile.Patch{IsBanned: profile.Bool(true)}
		}
		return cur.VRChatID, s.store.Update(ctx, discordID, patch)
	})
}

// Ban sets the override flag.  Fails with ErrBanned when already banned.
func (s *Service) Ban(ctx context.Context, discordID, actor string) error {
	return s.transition(ctx, audit.ActionBan, discordID, actor, func(cur profile.Profile, found bool) (string, error) {
		if StateOf(cur) == Banned {
			return "", ErrBanned
		}
		return cur.VRChatID, s.store.Update(ctx, discordID, profile.Patch{IsBanned: profile.Bool(true)})
	})
}

// Unban lifts a ban and leaves the link Unverified.  Requires Banned, else
// ErrNotBanned.
func (s *Service) Unban(ctx context.Context, discordID, actor string) error {
	return s.transition(ctx, audit.ActionUnban, discordID, actor, func(cur profile.Profile, found bool) (string, error) {
		if StateOf(cur) != Banned {
			return "", ErrNotBanned
		}
		return cur.VRChatID, s.store.Update(ctx, discordID, profile.Patch{
			IsBanned:   profile.Bool(false),
			IsVerified: profile.Bool(false),
		})
	})
}

// RefreshName pulls the current display name from VRChat and stores it when
// it changed.  It returns the name now on record.  Verification state is
// never touched.
func (s *Service) RefreshName(ctx context.Context, discordID, actor string) (string, error) {
	if s.names == nil {
		return "", errors.New("refresh name: no name source configured")
	}
	var name string
	err := s.transition(ctx, audit.ActionRename, discordID, actor, func(cur profile.Profile, found bool) (string, error) {
		if !found {
			return "", profile.ErrNotFound
		}
		if cur.VRChatID == "" {
			return "", errors.Wrapf(profile.ErrNotFound, "%s has no vrchat id", discordID)
		}
		fresh, err := s.names.DisplayName(ctx, cur.VRChatID)
		if err != nil {
			return "", errors.Wrap(err, "lookup display name")
		}
		name = cur.VRChatName
		if fresh == "" || fresh == cur.VRChatName {
			return "", errUnchanged
		}
		name = fresh
		return cur.VRChatID, s.store.Update(ctx, discordID, profile.Patch{VRChatName: profile.String(fresh)})
	})
	if errors.Is(err, errUnchanged) {
		return name, nil
	}
	return name, err
}

// errUnchanged short-circuits a transition that has nothing to write.
var errUnchanged = errors.New("unchanged")

// apply checks preconditions against cur and performs the write.  It returns
// the vrchat id to record with the event.
type apply func(cur profile.Profile, found bool) (vrchatID string, err error)

func (s *Service) transition(ctx context.Context, action, discordID, actor string, fn apply) (err error) {
	defer func() { metrics.TransitionsTotal.WithLabelValues(action, result(err)).Inc() }()

	unlock, err := s.locks.Lock(ctx, discordID)
	if err != nil {
		return errors.Wrapf(err, "%s %s: lock", action, discordID)
	}
	defer unlock()

	// Another process may have written since this cache was filled.
	if d, ok := s.locks.(keylock.Distributed); ok && d.Distributed() {
		s.reader.Invalidate(discordID)
	}

	cur, err := s.reader.GetProfile(ctx, discordID)
	found := err == nil
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return errors.Wrapf(err, "%s %s: read", action, discordID)
	}

	vrchatID, err := fn(cur, found)
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return err
		}
		return errors.Wrapf(err, "%s %s", action, discordID)
	}
	s.reader.Invalidate(discordID)

	zap.L().Info("verification transition",
		zap.String("action", action),
		zap.String("discord_id", discordID),
		zap.String("actor", actor))

	s.record(ctx, action, discordID, vrchatID, actor)
	return nil
}

// record writes the audit row and publishes the event.  Both are
// best-effort; the store write has already happened.
func (s *Service) record(ctx context.Context, action, discordID, vrchatID, actor string) {
	now := s.clock.Now().UTC()
	// Detached so a client hang-up does not drop the trail.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	ev := audit.Event{
		DiscordID: discordID,
		Action:    action,
		Actor:     actor,
		VRChatID:  vrchatID,
		Detail:    requestinfo.FromContext(ctx).Summary(),
		CreatedAt: now,
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		zap.L().Warn("audit record failed", zap.String("action", action),
			zap.String("discord_id", discordID), zap.Error(err))
	}
	if err := s.events.Publish(ctx, events.Event{
		Action:    action,
		DiscordID: discordID,
		VRChatID:  vrchatID,
		Actor:     actor,
		At:        now,
	}); err != nil {
		zap.L().Warn("event publish failed", zap.String("action", action),
			zap.String("discord_id", discordID), zap.Error(err))
	}
}

func result(err error) string {
	switch {
	case err == nil, errors.Is(err, errUnchanged):
		return "ok"
	case errors.Is(err, ErrAlreadyVerified), errors.Is(err, ErrBanned),
		errors.Is(err, ErrNotVerified), errors.Is(err, ErrNotBanned):
		return "rejected"
	default:
		return "error"
	}
}
