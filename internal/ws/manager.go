// Package ws fans push events out to connected UI clients over
// WebSocket, one logical channel per item.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ikaikahussey/stufff-app/internal/realtime"
)

// Manager tracks which clients watch which item and broadcasts events
// to them.
type Manager struct {
	subscribers sync.Map // itemID -> *sync.Map (set of *Client)

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
}

// Client is one WebSocket connection watching one item.
type Client struct {
	ID     string
	ItemID string
	Conn   *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
}

type broadcastMessage struct {
	itemID  string
	payload []byte
}

// NewManager creates a manager; call Run in a goroutine.
func NewManager() *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run handles connection lifecycle and broadcasts until the process exits.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		case msg := <-m.broadcast:
			m.broadcastToItem(msg.itemID, msg.payload)
		}
	}
}

// Feed forwards broker events into the fan-out until the subscription
// or ctx ends. Run in a goroutine next to Run.
func (m *Manager) Feed(ctx context.Context, broker realtime.Broker) {
	for {
		sub, err := broker.SubscribeAll(ctx)
		if err != nil {
			log.Printf("[WS] firehose subscribe failed, retrying: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for ev := range sub.Events() {
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			m.Broadcast(ev.ItemID, payload)
		}
		sub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			log.Printf("[WS] firehose dropped, resubscribing")
		}
	}
}

// RegisterClient adds a client to the fan-out.
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client.
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast queues a payload for every client watching the item.
func (m *Manager) Broadcast(itemID string, payload []byte) {
	m.broadcast <- &broadcastMessage{itemID: itemID, payload: payload}
}

// SubscriberCount reports how many clients watch an item.
func (m *Manager) SubscriberCount(itemID string) int {
	set, ok := m.subscribers.Load(itemID)
	if !ok {
		return 0
	}
	count := 0
	set.(*sync.Map).Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (m *Manager) registerClient(client *Client) {
	set, _ := m.subscribers.LoadOrStore(client.ItemID, &sync.Map{})
	set.(*sync.Map).Store(client, true)
	go client.writePump()
}

func (m *Manager) unregisterClient(client *Client) {
	if set, ok := m.subscribers.Load(client.ItemID); ok {
		set.(*sync.Map).Delete(client)
	}
	client.teardown()
}

func (m *Manager) broadcastToItem(itemID string, payload []byte) {
	set, ok := m.subscribers.Load(itemID)
	if !ok {
		return
	}
	set.(*sync.Map).Range(func(key, _ any) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
		default:
			// A full send buffer means a stuck client. Drop it right
			// here: the unregister channel's only receiver is the Run
			// loop we are executing on, so sending to it would block
			// Run on itself.
			set.(*sync.Map).Delete(client)
			client.teardown()
		}
		return true
	})
}

// teardown closes the send channel and connection exactly once. Both
// the read-pump exit and a slow-client drop reach it, in either order.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.Send)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(unregister chan *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] client %s read error: %v", c.ID, err)
			}
			return
		}
	}
}

// StartReadPump watches the connection for disconnects.
func (c *Client) StartReadPump(unregister chan *Client) {
	go c.readPump(unregister)
}
