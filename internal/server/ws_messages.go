package server

import (
	"time"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/rainmaker"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Server to client
	MessageTypeWelcome MessageType = "welcome"
	MessageTypeUpdate  MessageType = "update"
	MessageTypePong    MessageType = "pong"
	MessageTypeError   MessageType = "error"

	// Client to server
	MessageTypeRefresh MessageType = "refresh"
	MessageTypePing    MessageType = "ping"
)

// Message represents a WebSocket message sent to clients
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ClientMessage is a command received from a client
type ClientMessage struct {
	Type MessageType `json:"type"`
}

// WelcomeData is sent once when a client connects
type WelcomeData struct {
	ClientID string         `json:"client_id"`
	Entities []entity.State `json:"entities"`
}

// UpdateData reports one refresh cycle and the entity states after it
type UpdateData struct {
	Success  bool           `json:"success"`
	Nodes    int            `json:"nodes"`
	Skipped  int            `json:"skipped"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Retry    bool           `json:"retry,omitempty"`
	Entities []entity.State `json:"entities"`
}

// ErrorData describes a rejected client message
type ErrorData struct {
	Reason string `json:"reason"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewUpdateMessage(u coordinator.Update, states []entity.State) Message {
	data := UpdateData{
		Success:  u.Success,
		Nodes:    u.Nodes,
		Skipped:  u.Skipped,
		Entities: states,
	}
	if u.Err != nil {
		data.Error = u.Err.Error()
		data.Reason = rainmaker.GetShortErrorMessage(u.Err)
		data.Retry = u.Retryable
	}

	msg := NewMessage(MessageTypeUpdate, data)
	if !u.At.IsZero() {
		msg.Timestamp = u.At
	}
	return msg
}

func NewWelcomeMessage(clientID string, states []entity.State) Message {
	return NewMessage(MessageTypeWelcome, WelcomeData{ClientID: clientID, Entities: states})
}

func NewErrorMessage(reason string) Message {
	return NewMessage(MessageTypeError, ErrorData{Reason: reason})
}
