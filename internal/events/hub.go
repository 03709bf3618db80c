// Package events pushes background refresh events to websocket clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/i474232898/weather-offline-sync/internal/scheduler"
)

const broadcastBuffer = 256

// Hub is a scheduler.Notifier that fans events out to every connected
// websocket client. A nil *Hub is a valid, disabled hub.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   sync.Map // *websocket.Conn -> *sync.Mutex guarding writes
	broadcast chan []byte
	done      chan struct{}
	stopOnce  sync.Once
	server    *http.Server
	logger    *log.Logger

	mu   sync.Mutex
	last []byte
}

// NewHub returns nil when port <= 0.
func NewHub(port int, logger *log.Logger) *Hub {
	if port <= 0 {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, broadcastBuffer),
		done:      make(chan struct{}),
		logger:    logger,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	mux.HandleFunc("/ws", h.wsHandler)
	mux.HandleFunc("/health", h.healthHandler)
	return h
}

// Handler exposes the hub's routes.
func (h *Hub) Handler() http.Handler {
	return h.server.Handler
}

// Start serves websocket clients in the background.
func (h *Hub) Start() {
	if h == nil {
		return
	}
	go h.handleBroadcasts()
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Printf("ERROR: events server: %v", err)
		}
	}()
	h.logger.Printf("INFO: events websocket listening on %s/ws", h.server.Addr)
}

// Stop closes every client and shuts the server down.
func (h *Hub) Stop(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.stopOnce.Do(func() { close(h.done) })

	h.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			_ = conn.Close()
		}
		return true
	})
	return h.server.Shutdown(ctx)
}

// Notify queues ev for broadcast. It drops the event when the queue is full.
func (h *Hub) Notify(ev scheduler.Event) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Printf("ERROR: encoding event %s: %v", ev.ID, err)
		return
	}

	h.mu.Lock()
	h.last = msg
	h.mu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Printf("DEBUG: event queue full, dropping %s", ev.ID)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	n := 0
	h.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": h.Clients()})
}

func (h *Hub) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ERROR: websocket upgrade: %v", err)
		return
	}

	writeMu := &sync.Mutex{}
	h.clients.Store(conn, writeMu)
	h.logger.Printf("DEBUG: websocket client connected, total %d", h.Clients())

	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		h.write(conn, writeMu, last)
	}

	defer func() {
		h.clients.Delete(conn)
		_ = conn.Close()
		h.logger.Printf("DEBUG: websocket client disconnected, total %d", h.Clients())
	}()

	// Reads only serve to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("ERROR: websocket read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) handleBroadcasts() {
	for {
		select {
		case msg := <-h.broadcast:
			h.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				writeMu, ok2 := value.(*sync.Mutex)
				if ok && ok2 {
					h.write(conn, writeMu, msg)
				}
				return true
			})
		case <-h.done:
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, writeMu *sync.Mutex, msg []byte) {
	writeMu.Lock()
	defer writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.logger.Printf("ERROR: websocket write: %v", err)
		_ = conn.Close()
		h.clients.Delete(conn)
	}
}
