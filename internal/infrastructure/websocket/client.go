package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Cell sources travel in run
	// commands, so this is generous.
	maxMessageSize = 1 << 20

	// Size of the send channel buffer
	sendBufferSize = 64
)

// NotebookRunner is the slice of the coordinator a session needs.
type NotebookRunner interface {
	RunCell(notebookID, cellID, content string) error
	ReorderCells(notebookID string, ids []string) error
	HasNotebook(notebookID string) bool
}

// Client represents one WebSocket session bound to a single notebook.
type Client struct {
	hub    *Hub
	runner NotebookRunner
	conn   *websocket.Conn
	send   chan *WSEvent

	id         string
	userID     string
	notebookID string
}

// NewClient creates a new Client instance.
func NewClient(id, userID, notebookID string, hub *Hub, runner NotebookRunner, conn *websocket.Conn) *Client {
	return &Client{
		hub:        hub,
		runner:     runner,
		conn:       conn,
		send:       make(chan *WSEvent, sendBufferSize),
		id:         id,
		userID:     userID,
		notebookID: notebookID,
	}
}

// readPump pumps commands from the WebSocket connection into the coordinator.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket unexpected close",
					"client_id", c.id,
					"error", err)
			}
			break
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendEvent(NewErrorEvent("", "invalid command format"))
			continue
		}

		c.handleCommand(&cmd)
	}
}

// writePump pumps events from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel was closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleCommand processes a command from the client. Run and reorder errors
// are synchronous (parse failures, cycles, unknown cells) and go straight
// back on this session; evaluation results arrive via the hub broadcast.
func (c *Client) handleCommand(cmd *WSCommand) {
	switch cmd.Cmd {
	case CmdRun:
		if cmd.CellID == "" {
			c.sendEvent(NewErrorEvent("", "cellUuid required"))
			return
		}
		if err := c.runner.RunCell(c.notebookID, cmd.CellID, cmd.Data); err != nil {
			c.sendEvent(NewErrorEvent(cmd.CellID, err.Error()))
		}

	case CmdReorder:
		if len(cmd.Order) == 0 {
			c.sendEvent(NewErrorEvent("", "order required"))
			return
		}
		if err := c.runner.ReorderCells(c.notebookID, cmd.Order); err != nil {
			c.sendEvent(NewErrorEvent("", err.Error()))
		}

	case CmdPing:
		c.sendEvent(NewPongEvent())

	default:
		c.sendEvent(NewErrorEvent("", "unknown command: "+cmd.Cmd))
	}
}

// sendEvent queues an event for this client only.
func (c *Client) sendEvent(event *WSEvent) {
	select {
	case c.send <- event:
	default:
		c.hub.logger.Warn("client buffer full, dropping event",
			"client_id", c.id,
			"event_kind", event.Kind)
	}
}
