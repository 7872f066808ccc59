// Package hub fans snapshot and status messages out to websocket
// subscribers using a channel-based register/unregister/broadcast loop.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/junsooki/deskhook/internal/logging"
)

// Hub maintains the set of connected clients and broadcasts to them.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	pumps      sync.WaitGroup

	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// New creates a Hub. Call Run to start it.
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     logging.OrDefault(logger).With("hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// Run serves register, unregister and broadcast requests until ctx is done or
// Close is called. Queued messages are handed to clients before every client
// is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case <-h.stop:
			h.shutdown()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.pumps.Add(1)
			go c.writePump()
			h.logger.Info("subscriber connected", "remote", c.remote, "total", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("subscriber disconnected", "remote", c.remote, "remaining", count)

		case data := <-h.broadcast:
			h.deliver(data)
		}
	}
}

func (h *Hub) deliver(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client is too slow; drop it.
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropped slow subscriber", "remote", c.remote)
		}
	}
}

// shutdown delivers whatever is still queued, then closes every client's
// send queue so its write pump flushes and sends a close frame.
func (h *Hub) shutdown() {
	for drained := false; !drained; {
		select {
		case data := <-h.broadcast:
			h.deliver(data)
		default:
			drained = true
		}
	}
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close stops accepting messages, lets Run hand over the queued ones and
// waits until every client has written them out. It returns ctx.Err() if
// that takes longer than ctx allows.
func (h *Hub) Close(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	flushed := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast queues data for every client. It reports false if the queue was
// full or the hub is stopping, in which case the message is dropped.
func (h *Hub) Broadcast(data []byte) bool {
	select {
	case <-h.stop:
		return false
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- data:
		return true
	default:
		h.logger.Warn("broadcast queue full, dropping message")
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the connection until it closes.
// Browsers may only connect from the hub's own origin; requests without an
// Origin header are non-browser clients and are accepted.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newClient(h, conn, r.RemoteAddr)

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.readPump()
}
