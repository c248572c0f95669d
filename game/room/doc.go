// Package room provides the in-memory room registry for the Scrum Poker server.
//
// The room package implements:
//   - Thread-safe room storage keyed by a generated UUID
//   - Membership tracking (cumulative, names are never removed)
//   - Vote recording, reveal toggling and round reset
//   - Creator-only authorization for privileged mutations
//   - Idle-room eviction
//
// Core Types:
//
// Store owns every Room and is the only code that mutates one. Callers never
// see a *Room that the store still owns: every operation returns a Snapshot
// or an Info copy taken inside the same critical section as the mutation.
//
// Authorization:
//
// A room's creator name is its only credential. UpdateTitle, Flip and
// ResetVotes return ErrUnauthorized when the requester is anyone else, and
// leave the room untouched.
//
// Usage:
//
//	store := room.NewStore()
//
//	snap := store.Create("alice", "Sprint 1")
//	snap, err := store.Join(snap.ID, "bob")
//	if errors.Is(err, room.ErrRoomNotFound) {
//		// ...
//	}
//
//	snap, err = store.RecordVote(snap.ID, "bob", json.RawMessage(`"5"`))
//	snap, err = store.Flip(snap.ID, "alice")
package room
