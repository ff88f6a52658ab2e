package demohost

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TailHub fans out fired engine events to every connected WebSocket
// client, mirroring the control channel's command/response shape at a
// push rather than pull cadence: operators watch `event` actions fire
// live instead of polling.
type TailHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
}

func newTailHub() *TailHub {
	return &TailHub{
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Demo only: a real deployment must restrict this to known
			// operator origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type tailEvent struct {
	RuleID string            `json:"rule_id"`
	Fields map[string]string `json:"fields"`
}

// Publish matches ruleengine.EventFunc's signature, so it can be passed
// directly to pkg/engine.Engine.AddEventObserver.
func (h *TailHub) Publish(ruleID string, fields map[string]string) {
	payload, err := json.Marshal(tailEvent{RuleID: ruleID, Fields: fields})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// A slow client drops messages rather than blocking the
			// publisher; the tail is best-effort.
		}
	}
}

// ServeWS upgrades the HTTP request to a WebSocket and streams published
// events to it until the client disconnects.
func (h *TailHub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	ch := make(chan []byte, 32)

	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		}
	}
}
