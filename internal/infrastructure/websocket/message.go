package websocket

import (
	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
)

// Command kinds (client -> server)
const (
	CmdRun     = "run"
	CmdReorder = "reorder"
	CmdPing    = "ping"
)

// Event kinds (server -> client)
const (
	EventResult = "result"
	EventError  = "error"
	EventPong   = "pong"
)

// WSCommand is one client message.
type WSCommand struct {
	Cmd    string   `json:"cmd"`
	CellID string   `json:"cellUuid,omitempty"`
	Data   string   `json:"data,omitempty"`
	Order  []string `json:"order,omitempty"`
}

// WSEvent is one server message: a streamed evaluation result, an error, or a
// pong.
type WSEvent struct {
	Kind    string          `json:"kind"`
	CellID  string          `json:"cellUuid,omitempty"`
	Locals  domain.LocalSet `json:"locals,omitempty"`
	Message string          `json:"message,omitempty"`
	Ended   bool            `json:"ended,omitempty"`
}

// NewReplyEvent repackages an evaluator reply for the client.
func NewReplyEvent(reply *kernel.Reply) *WSEvent {
	if reply.Error != "" {
		return &WSEvent{
			Kind:    EventError,
			CellID:  reply.CellID,
			Message: reply.Error,
			Ended:   reply.Ended,
		}
	}
	return &WSEvent{
		Kind:   EventResult,
		CellID: reply.CellID,
		Locals: reply.Locals,
		Ended:  reply.Ended,
	}
}

// NewErrorEvent creates an error event for a synchronous command failure.
func NewErrorEvent(cellID, message string) *WSEvent {
	return &WSEvent{Kind: EventError, CellID: cellID, Message: message}
}

// NewPongEvent creates a liveness response.
func NewPongEvent() *WSEvent {
	return &WSEvent{Kind: EventPong}
}
