package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Session is one connected websocket client.
type Session struct {
	ID   string
	Send chan []byte
	// rooms is guarded by the owning hub's mutex.
	rooms map[string]struct{}
}

func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:    uuid.NewString(),
		Send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Hub tracks sessions and their room memberships. All methods are safe for
// concurrent use.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewHub(m *metrics.Metrics, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		metrics:  m,
		log:      log,
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; ok {
		return
	}
	h.sessions[s] = struct{}{}
	h.metrics.SessionOpened()
}

// Unregister removes s from every room and closes its Send channel.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	for room := range s.rooms {
		h.removeLocked(s, room)
	}
	delete(h.sessions, s)
	close(s.Send)
	h.metrics.SessionClosed()
}

// Join adds s to room. It reports false for sessions that are not registered.
func (h *Hub) Join(s *Session, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok || room == "" {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
	return true
}

func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s, room)
}

func (h *Hub) removeLocked(s *Session, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(s.rooms, room)
}

// Broadcast queues payload on every session in room without blocking.
// Sessions whose buffer is full miss the frame. It returns the number of
// sessions the frame was queued for.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered, dropped := 0, 0
	for s := range h.rooms[room] {
		select {
		case s.Send <- payload:
			delivered++
		default:
			dropped++
		}
	}

	h.metrics.Delivery("delivered", delivered)
	if dropped > 0 {
		h.metrics.Delivery("dropped", dropped)
		h.log.Warn("dropped realtime frames for slow sessions", "room", room, "dropped", dropped)
	}
	return delivered
}

// Publish encodes event and broadcasts it to the local room.
func (h *Hub) Publish(_ context.Context, room string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Event, err)
	}
	h.Broadcast(room, payload)
	return nil
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
