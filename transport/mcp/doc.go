// Package mcp provides a Model Context Protocol server for the poker rooms.
//
// The mcp package implements:
//   - Tool definitions for every room operation
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents and operators:
//   - create_room: Open a room with an optional title
//   - join_room: Add a participant to a room
//   - cast_vote: Record or overwrite a participant's vote
//   - update_title: Rename a room (creator only)
//   - flip_votes: Toggle vote visibility (creator only)
//   - reset_votes: Clear votes and hide them (creator only)
//   - get_room: Room detail with members and votes
//   - list_rooms: All open rooms
//
// Unlike the websocket protocol, which drops bad requests silently, tool
// calls always answer: failures come back as tool errors ("Room not found",
// "Only the room creator can do that").
//
// Transport Modes:
//
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: one JSON-RPC message per POST to /mcp
//
// Usage:
//
//	srv := mcp.NewServer(roomService, version, logger)
//
//	// Stdio mode
//	srv.ServeStdio()
//
//	// HTTP mode
//	router.HandleFunc("/mcp", srv.HandleHTTP)
//
// Tools call the same room service as the websocket handler, so a vote cast
// through MCP reaches browser clients as an ordinary update.
package mcp
