package mirror

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"weride/internal/types"
)

const writeWait = 5 * time.Second

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub pushes snapshots to WebSocket observers subscribed to a ride.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[types.ID]map[*session]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[types.ID]map[*session]struct{}),
	}
}

// Serve upgrades the request and keeps the connection subscribed to rideID until the peer leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, rideID types.ID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	s := &session{conn: conn}
	h.add(rideID, s)
	defer h.remove(rideID, s)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) Publish(_ context.Context, rideID types.ID, snap Snapshot) error {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.subs[rideID]))
	for s := range h.subs[rideID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()
	for _, s := range sessions {
		if err := s.send(snap); err != nil {
			h.remove(rideID, s)
		}
	}
	return nil
}

// Subscribers reports how many observers follow rideID.
func (h *Hub) Subscribers(rideID types.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[rideID])
}

func (h *Hub) add(rideID types.ID, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[rideID] == nil {
		h.subs[rideID] = make(map[*session]struct{})
	}
	h.subs[rideID][s] = struct{}{}
}

func (h *Hub) remove(rideID types.ID, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[rideID][s]; !ok {
		return
	}
	delete(h.subs[rideID], s)
	if len(h.subs[rideID]) == 0 {
		delete(h.subs, rideID)
	}
	_ = s.conn.Close()
}
