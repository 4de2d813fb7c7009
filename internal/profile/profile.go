// internal/profile/profile.go
//
// Profile record and the remote-store contract.
//
// Context
// -------
// The authoritative copy of every Discord ⇄ VRChat link lives in an
// external REST store.  This package defines the record, the narrow
// interface the rest of the service consumes, and the sentinel errors that
// separate "no such row" from "store unreachable".
//
// Notes
// -----
//   - Profile is a plain value.  Callers receive copies, never pointers into
//     a cache.
//   - Patch fields are pointers so a PUT carries only what changed.
package profile

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound means the store answered and has no row for the id.
	ErrNotFound = errors.New("profile not found")

	// ErrRemoteUnavailable means the store could not be reached or answered
	// with an unexpected status.  It must never be read as "not verified".
	ErrRemoteUnavailable = errors.New("profile store unavailable")
)

// Profile mirrors one row in the remote store.
type Profile struct {
	DiscordID  string `json:"discord_id"`
	VRChatID   string `json:"vrchat_id"`
	VRChatName string `json:"vrchat_name"`
	IsVerified bool   `json:"is_verified"`
	VerifiedBy string `json:"verified_by,omitempty"`
	IsBanned   bool   `json:"is_banned"`
}

// Link is the body of a create/verify write.
type Link struct {
	DiscordID  string `json:"discord_id"`
	VRChatID   string `json:"vrchat_id"`
	VRChatName string `json:"vrchat_name"`
	IsVerified bool   `json:"is_verified"`
	VerifiedBy string `json:"verified_by,omitempty"`
}

// Patch is a partial update keyed by discord id.  Nil fields are left
// untouched by the store.
type Patch struct {
	IsBanned   *bool   `json:"is_banned,omitempty"`
	IsVerified *bool   `json:"is_verified,omitempty"`
	VRChatName *string `json:"vrchat_name,omitempty"`
}

// Client is the contract the cache and state machine need from the store.
type Client interface {
	// Get returns the profile or ErrNotFound / ErrRemoteUnavailable.
	Get(ctx context.Context, discordID string) (Profile, error)
	// Put creates or replaces the link for l.DiscordID.
	Put(ctx context.Context, l Link) error
	// Update applies p to the row for discordID.
	Update(ctx context.Context, discordID string, p Patch) error
}

// Bool and String return pointers for Patch literals.
func Bool(b bool) *bool       { return &b }
func String(s string) *string { return &s }
