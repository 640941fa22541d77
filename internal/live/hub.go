// Package live runs the complaint chat rooms. Each room is keyed by a
// complaint id; a send-reply frame from one member is relayed as new-reply
// to every other member, on this instance and through the broker on others.
package live

import (
	"sync"
)

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection joined to one room.
type Client struct {
	ID     string
	Room   string
	UserID string
	Send   chan []byte
	conn   Conn
}

// Hub tracks room membership. All operations are safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	all   map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	if h.rooms[client.Room] == nil {
		h.rooms[client.Room] = make(map[*Client]struct{})
	}
	h.rooms[client.Room][client] = struct{}{}
}

// Unregister removes a client and closes its Send channel. It reports
// whether the client was registered.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return false
	}

	if members, ok := h.rooms[client.Room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.Room)
		}
	}

	delete(h.all, client)
	close(client.Send)
	return true
}

// Broadcast queues data for every member of room except skip, which may be
// nil. Members with a full buffer are skipped. It returns the number of
// members the frame was queued for.
func (h *Hub) Broadcast(room string, data []byte, skip *Client) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[room] {
		if client == skip {
			continue
		}
		select {
		case client.Send <- data:
			delivered++
		default:
		}
	}
	return delivered
}

// CloseAll closes every connection. The read pumps then unregister.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		if client.conn != nil {
			_ = client.conn.Close()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
