package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

type wsMessage struct {
	Type string         `json:"type"`
	Data types.Snapshot `json:"data"`
}

type wsClient struct {
	send chan []byte
}

// Hub fans monitor snapshots out to websocket clients. Publish never
// blocks; a slow client misses updates rather than stalling the monitor.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	maxClients int

	updates chan types.Snapshot
	stop    chan struct{}
	once    sync.Once

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    []byte
}

func NewHub(logger *slog.Logger, maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = 100
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		maxClients: maxClients,
		updates:    make(chan types.Snapshot, 16),
		stop:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
	}
}

func (h *Hub) Publish(snap types.Snapshot) {
	select {
	case h.updates <- snap:
	default:
		h.logger.Debug("websocket hub backlog full, dropping snapshot")
	}
}

// Run broadcasts published snapshots until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.once.Do(func() { close(h.stop) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-h.updates:
			h.broadcast(snap)
		}
	}
}

func (h *Hub) broadcast(snap types.Snapshot) {
	data, err := json.Marshal(wsMessage{Type: "snapshot", Data: snap})
	if err != nil {
		h.logger.Error("websocket marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	h.last = data
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.Clients() >= h.maxClients {
		http.Error(w, "maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := &wsClient{send: make(chan []byte, 8)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Reads only detect disconnects; clients have nothing to say.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read error", "err", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-h.stop:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
