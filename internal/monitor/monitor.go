// Package monitor provides an optional live-streaming websocket broadcaster
// of decoded radio/LongFi events, attached to `serve`/`longfi` via
// --web-addr.
package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType discriminates broadcast messages.
type EventType string

const (
	EventRxPacket EventType = "rx_packet"
	EventTxStatus EventType = "tx_status"
	EventLongFiRx EventType = "longfi_rx"
)

// Event is one broadcast message.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts Events to every connected websocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan Event)}
}

// ServeHTTP upgrades the connection and registers it for broadcasts.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}

	ch := make(chan Event, 64)
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
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast fans ev out to every connected client, dropping it for any
// client whose send buffer is full rather than blocking the radio loop.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log.Printf("monitor: dropping event for slow client %s", conn.RemoteAddr())
		}
	}
}

// Serve starts an HTTP server hosting the websocket endpoint at "/" on
// addr. It runs until the process exits; callers typically launch it in a
// goroutine.
func Serve(addr string, hub *Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/", hub)
	return http.ListenAndServe(addr, mux)
}
