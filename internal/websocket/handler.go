package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs registers the connection with the hub and pumps it until the peer
// goes away. onMessage may be nil for push-only connections.
func ServeWs(hub *Hub, conn *websocket.Conn, userID uuid.UUID, onMessage MessageHandler) {
	client := NewClient(hub, conn, userID, onMessage)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
