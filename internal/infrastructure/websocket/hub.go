package websocket

import (
	"log/slog"
	"sync"

	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
)

// SinkRegistry is the slice of the evaluator bridge the hub needs: per
// notebook sink registration.
type SinkRegistry interface {
	RegisterSink(notebookID string, sink kernel.Sink)
	UnregisterSink(notebookID string)
}

// broadcastMsg represents an event to be delivered to a notebook's clients
type broadcastMsg struct {
	notebookID string
	event      *WSEvent
}

// Hub manages the WebSocket session clients of all notebooks and fans
// evaluator replies out to them. While at least one client is connected for a
// notebook, the hub holds that notebook's sink registration with the bridge.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for broadcasting events
	broadcast chan *broadcastMsg

	// Clients indexed by notebook for fast fan-out
	byNotebook map[string]map[*Client]bool

	sinks  SinkRegistry
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(sinks SinkRegistry, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		byNotebook: make(map[string]map[*Client]bool),
		sinks:      sinks,
		logger:     logger,
	}
}

// Run starts the hub's main event loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

// notebookSink adapts the hub to the bridge's Sink interface for one
// notebook.
type notebookSink struct {
	hub        *Hub
	notebookID string
}

func (s *notebookSink) Deliver(reply *kernel.Reply) {
	s.hub.Broadcast(s.notebookID, NewReplyEvent(reply))
}

// Broadcast queues an event for every client of the notebook.
func (h *Hub) Broadcast(notebookID string, event *WSEvent) {
	h.broadcast <- &broadcastMsg{notebookID: notebookID, event: event}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.byNotebook[client.notebookID] == nil {
		h.byNotebook[client.notebookID] = make(map[*Client]bool)
		h.sinks.RegisterSink(client.notebookID, &notebookSink{hub: h, notebookID: client.notebookID})
	}
	h.byNotebook[client.notebookID][client] = true

	h.logger.Debug("client registered",
		"client_id", client.id,
		"notebook_id", client.notebookID,
		"total_clients", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if clients, ok := h.byNotebook[client.notebookID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.byNotebook, client.notebookID)
			h.sinks.UnregisterSink(client.notebookID)
		}
	}

	h.logger.Debug("client unregistered",
		"client_id", client.id,
		"notebook_id", client.notebookID,
		"total_clients", len(h.clients))
}

func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.byNotebook[msg.notebookID] {
		select {
		case client.send <- msg.event:
		default:
			// Client send buffer full, skip this message
			h.logger.Warn("client buffer full, dropping message",
				"client_id", client.id,
				"event_kind", msg.event.Kind)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
