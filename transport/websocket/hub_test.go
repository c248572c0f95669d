package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/scrumpoker/game/config"
	"github.com/wricardo/scrumpoker/game/protocol"
	"github.com/wricardo/scrumpoker/game/room"
)

// echoHandler subscribes on "sub:<room>" and acknowledges every text frame.
type echoHandler struct {
	mu       sync.Mutex
	received []string
}

func (e *echoHandler) Handle(_ context.Context, sess protocol.Session, raw []byte) {
	msg := string(raw)
	e.mu.Lock()
	e.received = append(e.received, msg)
	e.mu.Unlock()

	if roomID, ok := strings.CutPrefix(msg, "sub:"); ok {
		sess.Subscribe(roomID)
	}
	sess.Send([]byte("ack:" + msg))
}

func (e *echoHandler) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.received)
}

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		MaxMessageSize: 4096,
		SendBuffer:     16,
		AllowedOrigins: []string{"*"},
		BroadcastScope: config.ScopeAll,
	}
}

type harness struct {
	hub     *Hub
	handler *echoHandler
	server  *httptest.Server
	wsURL   string
}

func newHarness(t *testing.T, cfg config.WebSocketConfig) *harness {
	t.Helper()
	hub := NewHub(cfg, nil)
	go hub.Run()

	handler := &echoHandler{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, handler)
	}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		server.Close()
	})

	return &harness{
		hub:     hub,
		handler: handler,
		server:  server,
		wsURL:   "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	before := h.hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return h.hub.ClientCount() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	return string(data)
}

func assertNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected message %q", data)
}

func TestHub_ConnectAndDisconnect(t *testing.T) {
	h := newHarness(t, testConfig())

	conn := h.dial(t)
	assert.Equal(t, 1, h.hub.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return h.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_FramesReachHandler(t *testing.T) {
	h := newHarness(t, testConfig())
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	assert.Equal(t, "ack:hello", read(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("bin")))
	assertNothing(t, conn)
	assert.Equal(t, 1, h.handler.count(), "binary frames are ignored")
}

func TestHub_BroadcastScopeAll(t *testing.T) {
	h := newHarness(t, testConfig())
	a := h.dial(t)
	b := h.dial(t)

	h.hub.BroadcastUpdate(room.Snapshot{
		ID:    "r1",
		Title: "Sprint 1",
		Votes: map[string]json.RawMessage{"bob": json.RawMessage(`"5"`)},
	})

	want := `{"type":"update","roomId":"r1","title":"Sprint 1","votes":{"bob":"5"},"revealed":false}`
	assert.JSONEq(t, want, read(t, a))
	assert.JSONEq(t, want, read(t, b))
}

func TestHub_BroadcastScopeRoom(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastScope = config.ScopeRoom
	h := newHarness(t, cfg)
	a := h.dial(t)
	b := h.dial(t)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("sub:r1")))
	require.Equal(t, "ack:sub:r1", read(t, a))

	h.hub.BroadcastUpdate(room.Snapshot{ID: "r1", Title: "x"})

	assert.Contains(t, read(t, a), `"roomId":"r1"`)
	assertNothing(t, b)
}

func TestHub_UpdatesKeepOrder(t *testing.T) {
	h := newHarness(t, testConfig())
	conn := h.dial(t)

	for i := 0; i < 10; i++ {
		h.hub.BroadcastUpdate(room.Snapshot{ID: "r1", Title: strings.Repeat("x", i)})
	}
	for i := 0; i < 10; i++ {
		var msg protocol.Update
		require.NoError(t, json.Unmarshal([]byte(read(t, conn)), &msg))
		assert.Equal(t, strings.Repeat("x", i), msg.Title)
	}
}

func TestHub_FullBufferSkipsOnlyThatClient(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	slow := &Client{hub: hub, send: make(chan []byte, 1), rooms: map[string]struct{}{}}
	fast := &Client{hub: hub, send: make(chan []byte, 4), rooms: map[string]struct{}{}}
	hub.clients[slow] = struct{}{}
	hub.clients[fast] = struct{}{}

	hub.BroadcastUpdate(room.Snapshot{ID: "r1"})
	hub.BroadcastUpdate(room.Snapshot{ID: "r2"})

	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 2)
}

func TestClient_SendAfterClose(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), rooms: map[string]struct{}{}}
	assert.True(t, c.Send([]byte("a")))

	c.close()
	c.close()
	assert.False(t, c.Send([]byte("b")))
}

func TestHub_OriginCheck(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://poker.example.com"}
	h := newHarness(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"HTTPS://Poker.Example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	h := newHarness(t, cfg)
	conn := h.dial(t)

	for _, msg := range []string{"1", "2", "3"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}
	assert.Equal(t, "ack:1", read(t, conn))
	assert.Equal(t, "ack:2", read(t, conn))
	assertNothing(t, conn)
}

func TestHub_LargeFrameReachesHandler(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = config.Default().WebSocket.MaxMessageSize
	h := newHarness(t, cfg)
	conn := h.dial(t)

	big := strings.Repeat("a", 64<<10)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))
	assert.Equal(t, "ack:"+big, read(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("after")))
	assert.Equal(t, "ack:after", read(t, conn))
	assert.Equal(t, 1, h.hub.ClientCount())
}

func TestHub_UnlimitedByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.Default().WebSocket.RateLimit
	cfg.SendBuffer = 64
	h := newHarness(t, cfg)
	conn := h.dial(t)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("m")))
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, "ack:m", read(t, conn))
	}
	assert.Equal(t, n, h.handler.count())
}

func TestHub_Shutdown(t *testing.T) {
	h := newHarness(t, testConfig())
	conn := h.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.hub.Shutdown(ctx))

	assert.Zero(t, h.hub.ClientCount())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	_, _, err = websocket.DefaultDialer.Dial(h.wsURL, nil)
	if err == nil {
		// Upgrade can succeed before ServeWS notices shutdown; the hub must
		// still not track the connection.
		assert.Zero(t, h.hub.ClientCount())
	}
}
