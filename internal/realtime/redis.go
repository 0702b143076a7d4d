package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "item_messages:"

// RedisBroker implements Broker over Redis Pub/Sub. Channel naming:
// "item_messages:{itemID}", one logical channel per item.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to Redis and verifies connectivity.
func NewRedisBroker(addr, password string, db int) (*RedisBroker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBroker{client: rdb}, nil
}

// Publish marshals the event onto the item's channel.
func (b *RedisBroker) Publish(ctx context.Context, itemID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, channelPrefix+itemID, payload).Err()
}

// Subscribe opens one item channel.
func (b *RedisBroker) Subscribe(ctx context.Context, itemID string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channelPrefix+itemID)
	return newRedisSubscription(ctx, pubsub), nil
}

// SubscribeAll pattern-subscribes to every item channel.
func (b *RedisBroker) SubscribeAll(ctx context.Context) (Subscription, error) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	return newRedisSubscription(ctx, pubsub), nil
}

// Close closes the underlying client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	cancel context.CancelFunc
}

func newRedisSubscription(ctx context.Context, pubsub *redis.PubSub) *redisSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 64),
		cancel: cancel,
	}
	go sub.listen(ctx)
	return sub
}

func (s *redisSubscription) listen(ctx context.Context) {
	defer close(s.events)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[PUSH] dropping unparseable event on %s: %v", msg.Channel, err)
				continue
			}
			if ev.ItemID == "" {
				ev.ItemID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	s.cancel()
	return s.pubsub.Close()
}
