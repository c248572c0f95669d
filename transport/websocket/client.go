package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer = 256
)

// Client is one websocket connection. It implements protocol.Session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	addr    string
	handler MessageHandler
	limiter *rateLimiter

	mu     sync.Mutex
	closed bool
	rooms  map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, addr string, handler MessageHandler) *Client {
	var limiter *rateLimiter
	if rl := hub.cfg.RateLimit; rl.Burst > 0 {
		limiter = newRateLimiter(rl.Burst, rl.RefillInterval)
	}
	buffer := hub.cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, buffer),
		addr:    addr,
		handler: handler,
		limiter: limiter,
		rooms:   make(map[string]struct{}),
	}
}

// Send queues payload without blocking. It reports false if the client is
// closed or its buffer is full.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Subscribe records that this connection created or joined roomID.
func (c *Client) Subscribe(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = struct{}{}
}

func (c *Client) subscribed(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

// close marks the client closed and closes its send channel exactly once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps frames from the connection to the message handler.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !isExpectedCloseError(err) {
				c.hub.logger.Warn("websocket read error", zap.String("addr", c.addr), zap.Error(err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}
		if c.limiter != nil && !c.limiter.allow() {
			c.hub.logger.Debug("rate limit exceeded, discarding message", zap.String("addr", c.addr))
			continue
		}

		c.handler.Handle(c.hub.ctx, c, raw)
	}
}

// writePump pumps queued messages to the connection, one frame each.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
