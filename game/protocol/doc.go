// Package protocol implements the Scrum Poker wire protocol.
//
// Every frame is a single JSON object. Inbound frames carry a "type" and the
// fields that type needs:
//
//	{"type":"create",      "user":"alice", "title":"Sprint 1"}
//	{"type":"join",        "roomId":"...", "user":"bob"}
//	{"type":"vote",        "roomId":"...", "user":"bob", "vote":"5"}
//	{"type":"updateTitle", "roomId":"...", "user":"alice", "title":"Sprint 2"}
//	{"type":"flip",        "roomId":"...", "user":"alice"}
//	{"type":"resetVotes",  "roomId":"...", "user":"alice"}
//
// Decode turns a frame into one of the Command variants; anything else is
// ErrMalformed or ErrUnknownType. Unknown fields are ignored.
//
// Outbound frames are exactly:
//
//	{"type":"roomCreated", "roomId", "title"}
//	{"type":"joined",      "roomId", "title", "votes", "revealed"}
//	{"type":"error",       "message"}
//	{"type":"update",      "roomId", "title", "votes", "revealed"}
//
// Handler dispatches decoded commands. create and join are answered on the
// sending session only; the other kinds produce no reply and rely on the
// update broadcast. Requests that fail (malformed, unknown room, requester
// not the creator) are dropped without a reply, with one exception: join on
// an unknown room answers {"type":"error","message":"Room not found"}.
package protocol
