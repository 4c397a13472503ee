package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// SendToUser sends message to all connections of a specific user.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
				// drop instead of blocking a slow client
			}
		}
	}
}

// SendToTask notifies the two parties of a task: the owner and, when the
// task is assigned, the assignee.
func (h *Hub) SendToTask(ownerID uuid.UUID, assigneeID *uuid.UUID, data interface{}) {
	h.SendToUser(ownerID, data)
	if assigneeID != nil {
		h.SendToUser(*assigneeID, data)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()
		}
	}
}
