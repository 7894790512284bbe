package websocket

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from any origin.
	// In production, configure this based on your CORS policy.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket upgrade requests and manages connections
type Handler struct {
	hub    *Hub
	runner NotebookRunner
	auth   Authenticator
	logger *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, runner NotebookRunner, auth Authenticator, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		runner: runner,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP handles the WebSocket upgrade request. The session binds to the
// notebook named in the "notebook" query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			"error", err,
			"remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notebookID := r.URL.Query().Get("notebook")
	if notebookID == "" || !h.runner.HasNotebook(notebookID) {
		http.Error(w, "unknown notebook", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			"error", err,
			"remote_addr", r.RemoteAddr)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, userID, notebookID, h.hub, h.runner, conn)

	h.logger.Info("websocket client connected",
		"client_id", clientID,
		"user_id", userID,
		"notebook_id", notebookID,
		"remote_addr", r.RemoteAddr)

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// SetCheckOrigin allows customizing the origin check function
func SetCheckOrigin(f func(r *http.Request) bool) {
	upgrader.CheckOrigin = f
}
