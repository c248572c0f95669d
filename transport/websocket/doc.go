// Package websocket provides the WebSocket transport for the poker server.
//
// The websocket package implements:
//   - Connection upgrade with a configurable origin allow-list
//   - Per-connection read and write pumps with ping/pong keepalive
//   - Per-connection token-bucket rate limiting of inbound frames
//   - Non-blocking fan-out of room updates to open connections
//
// Architecture:
//
// A central Hub owns every open Client. ServeWS upgrades the request and
// registers the client with the hub's run loop, which starts the client's
// two goroutines. The read pump hands each text frame to a MessageHandler;
// the write pump drains the client's buffered send channel, one frame per
// message.
//
// Fan-out:
//
// Hub implements the room service's Broadcaster. BroadcastUpdate encodes the
// snapshot once and queues it on every client in scope without blocking:
//   - scope "all": every open connection, whichever room it is viewing
//   - scope "room": only connections that created or joined the room
//
// A closed client or one whose buffer is full misses that update. Nothing is
// retried and the remaining clients are unaffected.
//
// Usage:
//
//	hub := websocket.NewHub(cfg.WebSocket, logger)
//	go hub.Run()
//	defer hub.Shutdown(ctx)
//
//	svc := service.NewRoomService(room.NewStore(), hub, logger)
//	handler := protocol.NewHandler(svc, logger)
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, handler)
//	})
//
// Connection Lifecycle:
//
// 1. Client connects and is registered with the hub
// 2. Client sends commands and receives replies and updates
// 3. Disconnection unregisters the client; room membership is untouched
package websocket
