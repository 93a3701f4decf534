// Package ws implements the WebSocket fan-out for live sessions. Each
// connected editor joins the room for its session; broadcast messages
// arriving from the bus are relayed to every member of the room.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope relayed to connected editors. It matches the
// wire format published on broadcast channels.
type Message struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// conn is one connected editor inside a room.
type conn struct {
	ws     *websocket.Conn
	room   string
	cancel context.CancelFunc
}

// Hub tracks connections grouped by room. Room names are broadcast
// channel names, e.g. "session:<id>".
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*conn]struct{})}
}

// Serve upgrades the request to a WebSocket and parks it in the given
// room until the client disconnects. onClose, if non-nil, runs once
// after the connection leaves the room.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string, onClose func()) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin enforced by CORS middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "room", room, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, room: room, cancel: cancel}

	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket joined", "room", room, "remote", r.RemoteAddr)

	// Read loop: clients send nothing meaningful, but reading is how we
	// notice disconnects and answer pings.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
			if onClose != nil {
				onClose()
			}
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Publish sends raw message bytes to every member of a room. Dead
// connections are dropped as they surface.
func (h *Hub) Publish(ctx context.Context, room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "room", room, "error", err)
			go h.remove(c)
		}
	}
}

// PublishEvent marshals a Message and publishes it to a room.
func (h *Hub) PublishEvent(ctx context.Context, room string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal ws message", "room", room, "event", msg.Event, "error", err)
		return
	}
	h.Publish(ctx, room, data)
}

// RoomCount returns the number of members in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnectionCount returns the total number of connections across rooms.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	c.cancel()
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	slog.Info("websocket left", "room", c.room)
}

// Broadcasts is the bus-side subscription the hub bridges from.
type Broadcasts interface {
	SubscribeBroadcasts(fn func(channel string, data []byte)) (func(), error)
}

// Bridge wires the hub to the broadcast bus: every message published on a
// broadcast channel is relayed to the matching room. The returned func
// stops the bridge.
func (h *Hub) Bridge(ctx context.Context, bus Broadcasts) (func(), error) {
	return bus.SubscribeBroadcasts(func(channel string, data []byte) {
		h.Publish(ctx, channel, data)
	})
}
