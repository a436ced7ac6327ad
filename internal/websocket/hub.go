package websocket

import (
	"context"
	"encoding/json"

	"docqa-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Envelope is what connected clients receive for server-pushed events.
type Envelope struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: UserID -> connections (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	// Client table reads, answered by Run.
	lookup chan lookupRequest
	done   chan struct{}

	// Redis connection for cross-instance communication
	rdb *redis.Client
	// Instance id so a hub ignores its own redis echoes
	origin string

	logger logger.ILogger
}

type lookupRequest struct {
	userID uuid.UUID
	all    bool
	reply  chan []*Client
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		lookup:     make(chan lookupRequest),
		done:       make(chan struct{}),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

// Run owns the client table until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.clients {
				for _, c := range clients {
					c.close()
				}
			}
			h.clients = make(map[uuid.UUID][]*Client)
			return

		case client := <-h.register:
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"user_id":   client.UserID,
				"client_id": client.ID,
			})

		case client := <-h.unregister:
			clients := h.clients[client.UserID]
			for i, c := range clients {
				if c == client {
					h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
					client.close()
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
				h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
			}

		case req := <-h.lookup:
			var out []*Client
			if req.all {
				for _, clients := range h.clients {
					out = append(out, clients...)
				}
			} else {
				out = append(out, h.clients[req.userID]...)
			}
			req.reply <- out
		}
	}
}

// Register and Unregister are no-ops once Run has returned.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) clientsFor(userID uuid.UUID, all bool) []*Client {
	reply := make(chan []*Client, 1)
	select {
	case h.lookup <- lookupRequest{userID: userID, all: all, reply: reply}:
		return <-reply
	case <-h.done:
		return nil
	}
}

// deliver pushes data to local clients. Clients whose buffer is full are
// dropped.
func (h *Hub) deliver(clients []*Client, data []byte) {
	for _, client := range clients {
		if !client.enqueue(data) {
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{
				"user_id":   client.UserID,
				"client_id": client.ID,
			})
			go h.Unregister(client)
		}
	}
}

func (h *Hub) publish(target string, data []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterMessage{
		Origin:       h.origin,
		TargetUserID: target,
		Message:      data,
	})
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// Send pushes an event to every connection of userID on every instance.
func (h *Hub) Send(userID uuid.UUID, event string, data interface{}) {
	msg, err := json.Marshal(Envelope{Type: "notification", Event: event, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return
	}

	h.deliver(h.clientsFor(userID, false), msg)
	h.publish(userID.String(), msg)
}

// Broadcast pushes an event to all connected clients on every instance.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(Envelope{Type: "notification", Event: event, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return
	}

	h.deliver(h.clientsFor(uuid.Nil, true), msg)
	h.publish("*", msg)
}

// All instances subscribe to one channel and deliver to the clients they
// hold locally.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleClusterMessage([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleClusterMessage(raw []byte) {
	var payload clusterMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.origin {
		return
	}

	if payload.TargetUserID == "*" {
		h.deliver(h.clientsFor(uuid.Nil, true), payload.Message)
		return
	}

	uid, err := uuid.Parse(payload.TargetUserID)
	if err != nil {
		return
	}
	h.deliver(h.clientsFor(uid, false), payload.Message)
}
