package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

func recvEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBrokerRoutesByItem(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	defer b.Close()

	subA, err := b.Subscribe(ctx, "item-a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	subB, err := b.Subscribe(ctx, "item-b")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ev := Event{Kind: EventMessageInserted, ItemID: "item-a", Message: models.Message{ID: "m1", ItemID: "item-a"}}
	if err := b.Publish(ctx, "item-a", ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := recvEvent(t, subA)
	if got.Message.ID != "m1" || got.Kind != EventMessageInserted {
		t.Errorf("got %+v, want m1 inserted", got)
	}

	select {
	case ev := <-subB.Events():
		t.Errorf("item-b subscriber received %+v", ev)
	default:
	}
}

func TestMemoryBrokerFirehoseSeesEveryItem(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	defer b.Close()

	all, err := b.SubscribeAll(ctx)
	if err != nil {
		t.Fatalf("SubscribeAll: %v", err)
	}

	for _, itemID := range []string{"item-a", "item-b"} {
		ev := Event{Kind: EventMeetupUpdated, ItemID: itemID}
		if err := b.Publish(ctx, itemID, ev); err != nil {
			t.Fatalf("Publish %s: %v", itemID, err)
		}
	}

	first := recvEvent(t, all)
	second := recvEvent(t, all)
	if first.ItemID != "item-a" || second.ItemID != "item-b" {
		t.Errorf("got %s then %s, want item-a then item-b", first.ItemID, second.ItemID)
	}
}

func TestMemoryBrokerSubscriptionClose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	defer b.Close()

	sub, _ := b.Subscribe(ctx, "item-a")
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, ok := <-sub.Events(); ok {
		t.Error("events channel still open after Close")
	}

	// Publishing after close must not panic or block.
	if err := b.Publish(ctx, "item-a", Event{Kind: EventMessageInserted, ItemID: "item-a"}); err != nil {
		t.Fatalf("Publish after subscriber close: %v", err)
	}
}

func TestMemoryBrokerCloseClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	sub, _ := b.Subscribe(ctx, "item-a")
	all, _ := b.SubscribeAll(ctx)

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("item subscription open after broker Close")
	}
	if _, ok := <-all.Events(); ok {
		t.Error("firehose subscription open after broker Close")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
