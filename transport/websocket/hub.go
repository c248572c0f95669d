package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/game/config"
	"github.com/wricardo/scrumpoker/game/protocol"
	"github.com/wricardo/scrumpoker/game/room"
)

// MessageHandler consumes inbound text frames. It is called from the
// connection's read goroutine, one frame at a time.
type MessageHandler interface {
	Handle(ctx context.Context, sess protocol.Session, raw []byte)
}

// Hub maintains the set of open clients and fans room updates out to them.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	origins  originPolicy
	upgrader websocket.Upgrader

	// Registered clients
	clients map[*Client]struct{}
	mu      sync.RWMutex

	// Register requests from ServeWS
	register chan *Client

	// Unregister requests from read pumps
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewHub creates a new WebSocket hub. Run must be started before ServeWS
// accepts connections.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		logger:     logger,
		origins:    newOriginPolicy(cfg.AllowedOrigins, logger),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.check,
	}
	return h
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", zap.String("addr", client.addr), zap.Int("clients", count))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// ServeWS upgrades the request and hands every inbound frame to handler.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, handler MessageHandler) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := newClient(h, conn, r.RemoteAddr, handler)

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close()
	}
}

// BroadcastUpdate pushes snap to every open client in scope. Clients that are
// closed or whose buffer is full miss this update; the rest still get it.
// It never blocks on a connection.
func (h *Hub) BroadcastUpdate(snap room.Snapshot) {
	payload, err := protocol.EncodeUpdate(snap)
	if err != nil {
		h.logger.Error("encoding update", zap.String("room_id", snap.ID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var delivered, skipped int
	for client := range h.clients {
		if h.cfg.BroadcastScope == config.ScopeRoom && !client.subscribed(snap.ID) {
			continue
		}
		if client.Send(payload) {
			delivered++
		} else {
			skipped++
		}
	}

	h.logger.Debug("update broadcast",
		zap.String("room_id", snap.ID),
		zap.Int("delivered", delivered),
		zap.Int("skipped", skipped),
	)
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection, stops Run and waits for the client
// goroutines to exit or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("shutting down websocket hub")
	h.cancel()

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		h.logger.Warn("hub shutdown timed out, some connections may still be draining")
		return ctx.Err()
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.close()
	h.logger.Info("client disconnected", zap.String("addr", client.addr), zap.Int("clients", count))
}

func (h *Hub) shutdownClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("closing client connection", zap.String("addr", client.addr), zap.Error(err))
		}
	}
	h.logger.Info("closed client connections", zap.Int("count", len(clients)))
}
