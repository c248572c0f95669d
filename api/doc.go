// Package api provides the HTTP surface of the poker server.
//
// The api package implements:
//   - WebSocket upgrade handling for the live room protocol
//   - Read-only JSON views of open rooms
//   - Health reporting
//   - Mounting of the MCP JSON-RPC endpoint
//
// Endpoints:
//   - GET /              - plain-text banner "Scrum Poker Backend"
//   - GET /ws            - WebSocket upgrade; frames go to the protocol handler
//   - GET /healthz       - {"status":"healthy","rooms":N,"clients":M}
//   - GET /api/rooms     - {"count":N,"rooms":[summary...]}
//   - GET /api/rooms/{id} - room detail with members and votes, 404 if unknown
//   - POST /mcp          - MCP JSON-RPC (when an MCP handler is supplied)
//
// Rooms are changed only over /ws or MCP. The REST views never mutate state.
//
// Response Format:
//
// JSON endpoints set Content-Type: application/json. Errors are returned as:
//
//	{"error": "Room not found"}
//
// Usage:
//
//	srv := api.NewServer(roomService, hub, protocolHandler, mcpServer.HandleHTTP, logger)
//	http.ListenAndServe(":8080", srv)
package api
