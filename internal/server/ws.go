package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/loom/internal/gesture"
)

const (
	// HandInterval is the hand broadcast period (~30 Hz).
	HandInterval = 33 * time.Millisecond
	// writeWait bounds a single WebSocket write.
	writeWait = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// HandSource provides the hand state to broadcast.
type HandSource interface {
	Hand() gesture.HandState
}

// HandMessage is one broadcast frame.
type HandMessage struct {
	gesture.HandState
	Timestamp int64 `json:"timestamp"`
}

// HandHub broadcasts the hand state to every connected WebSocket client.
type HandHub struct {
	source  HandSource
	logger  *log.Logger
	clients map[string]*websocket.Conn
	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once
}

// NewHandHub creates a hub and starts its broadcaster.
func NewHandHub(source HandSource, logger *log.Logger) *HandHub {
	h := &HandHub{
		source:  source,
		logger:  logger,
		clients: make(map[string]*websocket.Conn),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP upgrades the request and keeps the client registered until
// it disconnects.
func (h *HandHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	h.logger.Debug("hand client connected", "client", id)

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		h.logger.Debug("hand client disconnected", "client", id)
	}()

	// Reading keeps control frames flowing and detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *HandHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops broadcasting and closes every client connection.
func (h *HandHub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, conn := range h.clients {
			conn.Close()
		}
	})
}

func (h *HandHub) broadcast() {
	ticker := time.NewTicker(HandInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		msg, err := json.Marshal(HandMessage{
			HandState: h.source.Hand(),
			Timestamp: time.Now().UnixMilli(),
		})
		if err != nil {
			h.logger.Error("encode hand state", "err", err)
			continue
		}

		// Writes are serialized by holding the lock; gorilla allows one writer.
		h.mu.Lock()
		for id, conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("hand write failed", "client", id, "err", err)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}
