package realtime

import (
	"context"
	"sync"
)

// MemoryBroker is the in-process Broker used in local mode: there is no
// cross-device push, but sessions and the websocket fan-out inside one
// process still observe each other's writes through it.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySubscription]struct{} // itemID -> subs
	all    map[*memorySubscription]struct{}
	closed bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[string]map[*memorySubscription]struct{}),
		all:  make(map[*memorySubscription]struct{}),
	}
}

// Publish delivers the event to the item's subscribers and the firehose.
// A subscriber that cannot keep up has the event dropped rather than
// blocking the publisher.
func (b *MemoryBroker) Publish(ctx context.Context, itemID string, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[itemID] {
		sub.deliver(ev)
	}
	for sub := range b.all {
		sub.deliver(ev)
	}
	return nil
}

// Subscribe opens the item's channel.
func (b *MemoryBroker) Subscribe(ctx context.Context, itemID string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscription{
		broker: b,
		itemID: itemID,
		events: make(chan Event, 64),
	}
	if b.subs[itemID] == nil {
		b.subs[itemID] = make(map[*memorySubscription]struct{})
	}
	b.subs[itemID][sub] = struct{}{}
	return sub, nil
}

// SubscribeAll opens the firehose.
func (b *MemoryBroker) SubscribeAll(ctx context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memorySubscription{
		broker:   b,
		firehose: true,
		events:   make(chan Event, 64),
	}
	b.all[sub] = struct{}{}
	return sub, nil
}

// Close closes every open subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
	for sub := range b.all {
		sub.closeLocked()
	}
	b.subs = make(map[string]map[*memorySubscription]struct{})
	b.all = make(map[*memorySubscription]struct{})
	return nil
}

type memorySubscription struct {
	broker   *MemoryBroker
	itemID   string
	firehose bool
	events   chan Event
	closed   bool
}

func (s *memorySubscription) deliver(ev Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.firehose {
		delete(s.broker.all, s)
	} else if set, ok := s.broker.subs[s.itemID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.broker.subs, s.itemID)
		}
	}
	s.closeLocked()
	return nil
}

func (s *memorySubscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
