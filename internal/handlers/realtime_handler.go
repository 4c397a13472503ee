package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/realtime"
	"github.com/taskerin/taskerin-backend/internal/utils"
)

type RealtimeHandler struct {
	Hub       *realtime.Hub
	JWTSecret string
}

// WebSocketHandler upgrades the connection and registers the client with the
// hub. Auth comes from a JWT passed as the token query parameter, since
// browsers cannot set headers on websocket upgrades.
func (h *RealtimeHandler) WebSocketHandler(c *websocket.Conn) {
	token := c.Query("token")
	if token == "" {
		log.Println("WebSocket: token parameter missing")
		c.Close()
		return
	}

	claims, err := utils.ParseJWT(h.JWTSecret, token)
	if err != nil {
		log.Println("WebSocket: invalid token:", err)
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		log.Println("WebSocket: invalid user id in token:", err)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userUUID)

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   &realtime.WebSocketConn{Conn: c},
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userUUID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	// Read loop keeps the connection alive; clients only receive.
	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}
		if payload["type"] == "ping" {
			client.Send <- []byte(`{"type":"pong"}`)
		}
	}
}
