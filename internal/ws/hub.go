package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"draw-relay/internal/models"
)

// Client represents one WebSocket connection, bound to a role for its
// whole lifetime.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	ID   string
	Role models.Role
}

// Hub maintains the single shared broadcast group. Every connected client
// receives every broadcast regardless of role.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan *Event
	Register   chan *Client
	Unregister chan *Client
	Mu         sync.RWMutex
}

// Event is one frame on the wire, in either direction.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event names
const (
	EVT_SUBMIT             = "submit"
	EVT_SUBMISSION         = "submission"
	EVT_ALL_SUBMISSIONS    = "allsubmissions"
	EVT_APPROVE            = "approve"
	EVT_DENY               = "deny"
	EVT_SUBMISSION_UPDATED = "submission-updated"
	EVT_DELETE_ALL         = "deleteAll"
	EVT_CLEAR              = "clear"
	EVT_START              = "start"
)

// NewEvent marshals a payload into an outbound event.
func NewEvent(name string, payload interface{}) *Event {
	e := &Event{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Failed to marshal %s payload: %v", name, err)
			data = []byte("null")
		}
		e.Data = data
	}
	return e
}

// NewHub creates the shared broadcast hub.
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan *Event, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}
