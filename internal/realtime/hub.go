// internal/realtime/hub.go
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is the envelope for everything emitted to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
}

// Hub fans events out to connected clients. Clients subscribe to named
// rooms ("conv:<id>" for conversations, "user:<id>" for the personal
// notification room). All maps share one mutex so AddClient + Join stay
// atomic relative to emits.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

func (h *Hub) AddClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)
}

// RemoveClient drops the client from every room and closes its send
// channel, which ends the connection's write pump.
func (h *Hub) RemoveClient(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.Send)
	log.Printf("Client unregistered: %s", connID)
}

func (h *Hub) Join(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connID] = client
}

func (h *Hub) Leave(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Rooms lists the rooms the connection has joined.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for room, members := range h.rooms {
		if _, ok := members[connID]; ok {
			out = append(out, room)
		}
	}
	return out
}

// InRoom reports whether the connection has joined the room.
func (h *Hub) InRoom(room, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// UserInRoom reports whether any of the user's connections joined the room.
func (h *Hub) UserInRoom(room string, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.rooms[room] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

// EmitToRoom sends an event to every connection in the room. exceptConnID
// may be empty to include everyone.
func (h *Hub) EmitToRoom(room string, ev Event, exceptConnID string) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.rooms[room] {
		if id == exceptConnID {
			continue
		}
		h.push(client, payload)
	}
}

// EmitToUser sends an event to every connection of the user.
func (h *Hub) EmitToUser(userID uuid.UUID, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			h.push(client, payload)
		}
	}
}

// EmitToConn sends an event to one connection only, used for caller-directed
// error events.
func (h *Hub) EmitToConn(connID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[connID]; ok {
		h.push(client, payload)
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.push(client, payload)
	}
}

// push never blocks: a client whose send buffer is full misses the event
// rather than stalling the emitter.
func (h *Hub) push(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
	}
}
