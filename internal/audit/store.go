// internal/audit/store.go
//
// Append-only trail of verification transitions.
//
// Context
// -------
// The remote profile store keeps only the current state of a link.  Staff
// need to know who verified, banned, or renamed a member and when, so every
// successful transition is also written to MySQL:
//
//	verification_event (id PK, discord_id, action, actor, vrchat_id,
//	                    detail, created_at)
//
// Writes are best-effort from the caller's point of view; the state machine
// logs and continues when Record fails.
package audit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// Action names stored in verification_event.action.
const (
	ActionVerify   = "verify"
	ActionUnverify = "unverify"
	ActionBan      = "ban"
	ActionUnban    = "unban"
	ActionRename   = "rename"
)

// Schema creates the table when it is missing.
const Schema = `CREATE TABLE IF NOT EXISTS verification_event (
  id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  discord_id VARCHAR(32)  NOT NULL,
  action     VARCHAR(16)  NOT NULL,
  actor      VARCHAR(64)  NOT NULL,
  vrchat_id  VARCHAR(64)  NOT NULL DEFAULT '',
  detail     VARCHAR(255) NOT NULL DEFAULT '',
  created_at DATETIME(3)  NOT NULL,
  KEY idx_discord_created (discord_id, created_at)
)`

// Event is one row of verification_event.
type Event struct {
	ID        int64     `db:"id"         json:"id"`
	DiscordID string    `db:"discord_id" json:"discord_id"`
	Action    string    `db:"action"     json:"action"`
	Actor     string    `db:"actor"      json:"actor"`
	VRChatID  string    `db:"vrchat_id"  json:"vrchat_id,omitempty"`
	Detail    string    `db:"detail"     json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Recorder is what the state machine needs.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Store is a sqlx-backed Recorder.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema runs Schema.  Safe to call on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "audit schema")
}

// Record inserts ev.  A zero CreatedAt is set to now (UTC).
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	const q = `INSERT INTO verification_event
                      (discord_id, action, actor, vrchat_id, detail, created_at)
               VALUES (:discord_id, :action, :actor, :vrchat_id, :detail, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, ev); err != nil {
		return errors.Wrapf(err, "record %s for %s", ev.Action, ev.DiscordID)
	}
	return nil
}

// ListByDiscordID returns up to limit events for discordID, newest first.
// limit ≤ 0 means 50.
func (s *Store) ListByDiscordID(ctx context.Context, discordID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, discord_id, action, actor, vrchat_id, detail, created_at
                 FROM verification_event
                WHERE discord_id = ?
                ORDER BY created_at DESC, id DESC
                LIMIT ?`

	events := make([]Event, 0, 8)
	if err := s.db.SelectContext(ctx, &events, q, discordID, limit); err != nil {
		return nil, errors.Wrapf(err, "list events for %s", discordID)
	}
	return events, nil
}

// Nop discards events.  Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
