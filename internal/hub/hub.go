package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub is the room multiplexer: it maps live connections to the set of chats
// they are currently viewing and routes broadcasts to exactly those members.
// Membership is ephemeral; a connection that drops loses all of it and must
// re-join after reconnecting.
type Hub struct {
	mu sync.Mutex

	conns  map[string]*Client            // connection id -> client
	byUser map[uint64]*Client            // one live connection per user
	rooms  map[uint64]map[string]*Client // chat id -> connection id -> client
	joined map[string]map[uint64]bool    // connection id -> chat ids
}

func New() *Hub {
	return &Hub{
		conns:  make(map[string]*Client),
		byUser: make(map[uint64]*Client),
		rooms:  make(map[uint64]map[string]*Client),
		joined: make(map[string]map[uint64]bool),
	}
}

// Register adds a connection. A user gets exactly one live connection: a
// second registration for the same user displaces the first, so events are
// never delivered twice to one session. The connected ack is enqueued under
// the lock; a later displacement can only close the send channel after it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	prev := h.byUser[c.UserID]
	if prev != nil {
		h.removeLocked(prev)
	}
	h.conns[c.ID] = c
	h.byUser[c.UserID] = c
	h.joined[c.ID] = make(map[uint64]bool)
	if frame, err := json.Marshal(Event{Type: TypeConnected}); err == nil {
		c.send <- frame
	}
	total := len(h.conns)
	h.mu.Unlock()

	if prev != nil {
		prev.closeSend()
	}
	log.Printf("hub register conn=%s user=%d total=%d", c.ID, c.UserID, total)
}

// Unregister drops the connection and every room membership it held.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, known := h.conns[c.ID]
	if known {
		h.removeLocked(c)
	}
	total := len(h.conns)
	h.mu.Unlock()

	if known {
		c.closeSend()
		log.Printf("hub unregister conn=%s user=%d total=%d", c.ID, c.UserID, total)
	}
}

// Join subscribes the connection to a chat room. Idempotent.
func (h *Hub) Join(connID string, chatID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	room := h.rooms[chatID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[chatID] = room
	}
	room[connID] = c
	h.joined[connID][chatID] = true
}

// Leave removes the membership. Leaving an unjoined room is a no-op.
func (h *Hub) Leave(connID string, chatID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[chatID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if set, ok := h.joined[connID]; ok {
		delete(set, chatID)
	}
}

// Broadcast delivers the frame to every current member of the chat room and
// to no one else. Members whose send buffer is full are dropped; they recover
// through the reconnect path.
func (h *Hub) Broadcast(chatID uint64, frame []byte) {
	h.mu.Lock()
	var stale []*Client
	for _, c := range h.rooms[chatID] {
		select {
		case c.send <- frame:
		default:
			h.removeLocked(c)
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		c.closeSend()
		log.Printf("hub dropped slow conn=%s user=%d chat=%d", c.ID, c.UserID, chatID)
	}
}

// RoomSize reports current membership of a chat room.
func (h *Hub) RoomSize(chatID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[chatID])
}

// Connected reports the number of live connections.
func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) removeLocked(c *Client) {
	delete(h.conns, c.ID)
	if h.byUser[c.UserID] == c {
		delete(h.byUser, c.UserID)
	}
	for chatID := range h.joined[c.ID] {
		if room, ok := h.rooms[chatID]; ok {
			delete(room, c.ID)
			if len(room) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	delete(h.joined, c.ID)
}
