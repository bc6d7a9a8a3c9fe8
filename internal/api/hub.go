package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/oscillon/internal/engine"
)

// wsEnvelope wraps every WebSocket message with a type tag.
type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans simulation frames out to WebSocket subscribers. All writes go
// through the run loop, so each connection has a single writer.
type Hub struct {
	coord    *engine.Coordinator
	upgrader websocket.Upgrader

	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	direct    chan directMsg

	clients     map[*websocket.Conn]bool
	subscribers atomic.Int32
}

type directMsg struct {
	conn *websocket.Conn
	data []byte
}

// NewHub creates a hub and starts its fan-out loop.
func NewHub(coord *engine.Coordinator) *Hub {
	h := &Hub{
		coord: coord,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 16),
		direct:    make(chan directMsg, 16),
		clients:   make(map[*websocket.Conn]bool),
	}
	go h.run()
	return h
}

// SubscriberCount returns the number of attached WebSocket clients.
func (h *Hub) SubscriberCount() int {
	return int(h.subscribers.Load())
}

// Broadcast queues a visualization frame for every subscriber. Frames are
// dropped when the queue is full — a slow consumer must not stall the
// tick loop.
func (h *Hub) Broadcast(frame engine.VizFrame) {
	data, err := json.Marshal(wsEnvelope{Type: "simulation_update", Data: frame})
	if err != nil {
		slog.Error("marshal broadcast frame", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
			h.subscribers.Store(int32(len(h.clients)))

		case conn := <-h.remove:
			h.dropClient(conn)

		case msg := <-h.direct:
			if h.clients[msg.conn] {
				if err := msg.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.dropClient(msg.conn)
				}
			}

		case data := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					slog.Warn("websocket write failed, dropping client", "error", err)
					h.dropClient(conn)
				}
			}
		}
	}
}

func (h *Hub) dropClient(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.subscribers.Store(int32(len(h.clients)))
}

// handleWS upgrades the connection, sends the full snapshot as an
// initial_state message, and then answers pings until the client goes
// away. Broadcast frames arrive via the hub loop.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.register <- conn

	initial, err := json.Marshal(wsEnvelope{Type: "initial_state", Data: h.coord.Snapshot()})
	if err == nil {
		h.direct <- directMsg{conn: conn, data: initial}
	}

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() { h.remove <- conn }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == "ping" {
			pong, err := json.Marshal(wsEnvelope{
				Type: "pong",
				Data: map[string]float64{"timestamp": float64(time.Now().UnixMilli()) / 1000.0},
			})
			if err == nil {
				h.direct <- directMsg{conn: conn, data: pong}
			}
		}
	}
}
