// Package service provides the business logic layer for the Scrum Poker server.
//
// The service package implements:
//   - Serialized room mutation across every transport
//   - Update fan-out after each successful mutation
//   - Read-only room views for the REST and MCP surfaces
//   - Idle-room eviction
//
// Architecture:
//
// The service layer sits between the transports (WebSocket, MCP, HTTP) and
// the room store. RoomService holds one mutex for the whole process; a
// mutation and the broadcast of its update happen inside the same critical
// section, so no two mutations interleave and updates leave in the order the
// mutations happened.
//
// Callers that must also reply to a requester inside that critical section
// (the WebSocket protocol handler answering create and join) use Do, which
// hands them a Tx valid only for the duration of the callback:
//
//	rooms.Do(func(tx *service.Tx) {
//		snap, err := tx.JoinRoom(roomID, user)
//		// reply to the requester here
//	})
//
// The context-taking methods on RoomService wrap a single Tx call each and
// are what the MCP tools use.
//
// Usage:
//
//	store := room.NewStore()
//	rooms := service.NewRoomService(store, hub, logger)
//
//	snap, err := rooms.CreateRoom(ctx, "alice", "Sprint 1")
//	snap, err = rooms.Vote(ctx, snap.ID, "bob", json.RawMessage(`"5"`))
package service
