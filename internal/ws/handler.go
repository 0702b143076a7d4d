package ws

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP connections and joins them to the fan-out.
type Handler struct {
	manager *Manager
}

// NewHandler creates a WebSocket handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// Register mounts the WebSocket route on an existing router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/ws/items/{id}", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and subscribes it to the
// item's channel for as long as the socket stays open.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		ItemID: itemID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.manager.RegisterClient(client)
	client.StartReadPump(h.manager.unregister)

	client.Send <- []byte(fmt.Sprintf(`{"type":"connected","itemId":%q,"clientId":%q}`, itemID, client.ID))
}
