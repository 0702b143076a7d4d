package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ikaikahussey/stufff-app/internal/conversation"
	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
)

// Conversation is an open view of one item's thread, held while the
// user has the conversation on screen. Opening subscribes to the
// item's push channel; Close unsubscribes deterministically, so a
// session that walks through many conversations never accumulates
// channels.
type Conversation struct {
	engine   *Engine
	itemID   string
	viewerID string

	mu     sync.Mutex
	sub    realtime.Subscription
	done   chan struct{}
	closed bool
}

// OpenConversation materializes the thread and subscribes to its push
// channel.
func (e *Engine) OpenConversation(ctx context.Context, itemID, viewerID string) (*Conversation, error) {
	if err := e.ensureThread(ctx, itemID); err != nil {
		return nil, err
	}

	sub, err := e.broker.Subscribe(context.Background(), itemID)
	if err != nil {
		return nil, err
	}

	c := &Conversation{
		engine:   e,
		itemID:   itemID,
		viewerID: viewerID,
		sub:      sub,
		done:     make(chan struct{}),
	}
	go c.pump()
	return c, nil
}

// pump forwards pushed events into the engine snapshot until the
// session closes. A dropped subscription is resubscribed, not fatal.
func (c *Conversation) pump() {
	for {
		c.mu.Lock()
		sub := c.sub
		c.mu.Unlock()
		if sub == nil {
			return
		}

		events := sub.Events()
	recv:
		for {
			select {
			case <-c.done:
				return
			case ev, ok := <-events:
				if !ok {
					break recv
				}
				c.engine.handlePush(ev)
			}
		}

		// Channel closed underneath us: the subscription dropped.
		if !c.resubscribe() {
			return
		}
	}
}

func (c *Conversation) resubscribe() bool {
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(time.Second):
		}

		sub, err := c.engine.broker.Subscribe(context.Background(), c.itemID)
		if err != nil {
			log.Printf("[PUSH] resubscribe for item %s failed, retrying: %v", c.itemID, err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			sub.Close()
			return false
		}
		c.sub = sub
		c.mu.Unlock()
		log.Printf("[PUSH] resubscribed to item %s", c.itemID)
		return true
	}
}

// Messages returns the current thread. It fails with ErrClosed once
// the session is torn down; a write resolving late must not repaint a
// closed view.
func (c *Conversation) Messages(ctx context.Context) ([]models.Message, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.engine.Messages(ctx, c.itemID)
}

// Grouped returns the thread split into day sections.
func (c *Conversation) Grouped(ctx context.Context) ([]conversation.DayGroup, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.engine.GroupedMessages(ctx, c.itemID)
}

// Send appends a message authored by the session's viewer.
func (c *Conversation) Send(ctx context.Context, receiverID, body string) (models.Message, error) {
	if c.isClosed() {
		return models.Message{}, ErrClosed
	}
	return c.engine.SendMessage(ctx, c.itemID, c.viewerID, receiverID, body)
}

// MeetupStatus derives the thread's current meetup status.
func (c *Conversation) MeetupStatus(ctx context.Context) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	return c.engine.MeetupStatus(ctx, c.itemID)
}

// Unread counts messages the viewer has not read.
func (c *Conversation) Unread(ctx context.Context) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	return c.engine.UnreadCount(ctx, c.itemID, c.viewerID)
}

// MarkRead advances the viewer's last-read cursor.
func (c *Conversation) MarkRead() {
	if c.isClosed() {
		return
	}
	c.engine.MarkRead(c.itemID, c.viewerID)
}

// Close cancels the push subscription. In-flight writes still resolve
// against the engine; only this view stops updating.
func (c *Conversation) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	close(c.done)
	c.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (c *Conversation) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
