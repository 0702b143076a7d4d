package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
)

func dialItem(t *testing.T, srv *httptest.Server, itemID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/items/" + itemID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(payload, &v); err != nil {
		t.Fatalf("decode %q: %v", payload, err)
	}
	return v
}

func TestWebSocketFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	manager := NewManager()
	go manager.Run()
	go manager.Feed(ctx, broker)

	router := mux.NewRouter()
	NewHandler(manager).Register(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialItem(t, srv, "42")

	welcome := readJSON(t, conn)
	if welcome["type"] != "connected" || welcome["itemId"] != "42" {
		t.Fatalf("welcome frame %+v", welcome)
	}
	if n := manager.SubscriberCount("42"); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}

	// An event on another item's channel must not reach this client.
	broker.Publish(ctx, "other", realtime.Event{
		Kind: realtime.EventMessageInserted, ItemID: "other",
		Message: models.Message{ID: "foreign", ItemID: "other"},
	})
	broker.Publish(ctx, "42", realtime.Event{
		Kind: realtime.EventMessageInserted, ItemID: "42",
		Message: models.Message{ID: "m1", ItemID: "42", Body: "hello"},
	})

	frame := readJSON(t, conn)
	if frame["kind"] != realtime.EventMessageInserted {
		t.Errorf("kind %v, want message.inserted", frame["kind"])
	}
	msg, _ := frame["message"].(map[string]any)
	if msg == nil || msg["id"] != "m1" {
		t.Errorf("frame carried %+v, want message m1", frame["message"])
	}
}

func TestSlowClientDropKeepsFanOutAlive(t *testing.T) {
	manager := NewManager()
	go manager.Run()

	// A client whose send buffer cannot accept anything.
	stuck := &Client{ID: "stuck", ItemID: "42", Send: make(chan []byte)}
	set, _ := manager.subscribers.LoadOrStore("42", &sync.Map{})
	set.(*sync.Map).Store(stuck, true)

	manager.Broadcast("42", []byte(`{"kind":"message.inserted"}`))

	// The stuck client gets dropped and its channel closed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, open := channelState(stuck.Send); !open {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stuck client's send channel never closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := manager.SubscriberCount("42"); n != 0 {
		t.Fatalf("SubscriberCount = %d after drop, want 0", n)
	}

	// Its read pump exiting later unregisters the same client again;
	// that must not panic the Run loop.
	manager.UnregisterClient(stuck)

	// Run must still service registrations after the drop.
	registered := make(chan struct{})
	go func() {
		manager.RegisterClient(&Client{ID: "live", ItemID: "42", Send: make(chan []byte, 1)})
		close(registered)
	}()
	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out loop stalled after dropping a slow client")
	}
	if n := manager.SubscriberCount("42"); n != 1 {
		t.Fatalf("SubscriberCount = %d after re-register, want 1", n)
	}
}

// channelState reports a pending payload and whether the channel is
// still open, without blocking.
func channelState(ch chan []byte) ([]byte, bool) {
	select {
	case payload, ok := <-ch:
		return payload, ok
	default:
		return nil, true
	}
}

func TestWebSocketDisconnectDropsSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	manager := NewManager()
	go manager.Run()
	go manager.Feed(ctx, broker)

	router := mux.NewRouter()
	NewHandler(manager).Register(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialItem(t, srv, "42")
	readJSON(t, conn) // welcome
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if manager.SubscriberCount("42") == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("SubscriberCount = %d after disconnect, want 0", manager.SubscriberCount("42"))
}
