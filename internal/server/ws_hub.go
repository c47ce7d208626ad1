package server

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/logging"
)

const broadcastBuffer = 256

// UpdateSource delivers refresh cycle results and accepts refresh requests
type UpdateSource interface {
	Subscribe() (<-chan coordinator.Update, func())
	RequestRefresh(ctx context.Context)
}

// Hub maintains active WebSocket clients and broadcasts entity states after
// every refresh cycle.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	replies    chan reply

	// done is closed when Run returns
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	entities *entity.Set
	source   UpdateSource

	refreshCtx    context.Context
	refreshCancel context.CancelFunc
}

// NewHub creates a hub for entities kept current by source
func NewHub(entities *entity.Set, source UpdateSource) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		broadcast:     make(chan Message, broadcastBuffer),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		replies:       make(chan reply),
		done:          make(chan struct{}),
		clients:       make(map[*Client]bool),
		entities:      entities,
		source:        source,
		refreshCtx:    ctx,
		refreshCancel: cancel,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()
	defer h.stop()

	logging.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			logging.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()

			h.sendTo(client, NewWelcomeMessage(client.id, h.entities.Describe()))
			logging.Info("WebSocket client registered",
				zap.String("client_id", client.id),
				zap.String("remote_addr", client.remoteAddr),
				zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.Info("WebSocket client unregistered",
					zap.String("client_id", client.id),
					zap.Int("total_clients", len(h.clients)))
			}
			h.mu.Unlock()

		case r := <-h.replies:
			h.mu.RLock()
			_, ok := h.clients[r.client]
			h.mu.RUnlock()
			if ok {
				h.sendTo(r.client, r.msg)
			}

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			h.fanOut(NewUpdateMessage(u, h.entities.Describe()))

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		h.refreshCancel()
		close(h.done)

		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
	})
}

func (h *Hub) fanOut(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// slow or dead client
			close(client.send)
			delete(h.clients, client)
			logging.Warn("Client send buffer full, unregistering",
				zap.String("client_id", client.id))
		}
	}
}

func (h *Hub) sendTo(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("Hub broadcast channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// requestRefresh runs a refresh for a client command. The outcome reaches
// every client through the coordinator subscription.
func (h *Hub) requestRefresh() {
	go h.source.RequestRefresh(h.refreshCtx)
}

// reply is a message for a single client
type reply struct {
	client *Client
	msg    Message
}

func (h *Hub) replyTo(c *Client, msg Message) {
	select {
	case h.replies <- reply{client: c, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
