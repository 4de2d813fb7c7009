// Package events fans verification transitions out to other services.
//
// Each successful transition becomes one JSON message on the topic exchange
// vrclink.events with routing key profile.<action>.  Consumers (the Discord
// bot's role sync, moderation logs) bind their own queues.
//
// Publishing is best-effort: the caller logs a failure and moves on, because
// the link store has already been written.
package events

import (
	"context"
	"time"
)

// DefaultExchange is the topic exchange transitions are published to.
const DefaultExchange = "vrclink.events"

// Event is the message body.
type Event struct {
	Action    string    `json:"action"`
	DiscordID string    `json:"discord_id"`
	VRChatID  string    `json:"vrchat_id,omitempty"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

// RoutingKey is profile.<action>.
func (e Event) RoutingKey() string { return "profile." + e.Action }

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
