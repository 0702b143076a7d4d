// Package realtime carries per-item push channels. Every remote write
// that touches a conversation is published on its item's channel; open
// conversations subscribe to the channel for as long as they are open.
package realtime

import (
	"context"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

// Event kinds delivered on an item channel.
const (
	EventMessageInserted = "message.inserted"
	EventMeetupUpdated   = "meetup.updated"
)

// Event is the full row delivered by a push notification. The message
// id doubles as the correlation id: a session that wrote the message
// recognises its own echo by it.
type Event struct {
	Kind    string         `json:"kind"`
	ItemID  string         `json:"item_id"`
	Message models.Message `json:"message"`
}

// Subscription is one live item-channel subscription. Close must be
// called when the conversation is closed; subscriptions are never
// left to garbage collection.
type Subscription interface {
	// Events yields pushed events until the subscription is closed.
	// The channel is closed on Close and on unrecoverable drops;
	// callers resubscribe rather than crash.
	Events() <-chan Event
	Close() error
}

// Broker fans mutations out to item channels.
type Broker interface {
	// Publish delivers the event to every subscriber of the item's
	// channel, including the publisher's own session.
	Publish(ctx context.Context, itemID string, ev Event) error
	// Subscribe opens the item's channel.
	Subscribe(ctx context.Context, itemID string) (Subscription, error)
	// SubscribeAll opens a firehose over every item channel, used by
	// the websocket fan-out.
	SubscribeAll(ctx context.Context) (Subscription, error)
	Close() error
}
