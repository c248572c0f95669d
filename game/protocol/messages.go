package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/scrumpoker/game/room"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Kind is the value of the "type" field.
type Kind string

const (
	KindCreate      Kind = "create"
	KindJoin        Kind = "join"
	KindVote        Kind = "vote"
	KindUpdateTitle Kind = "updateTitle"
	KindFlip        Kind = "flip"
	KindResetVotes  Kind = "resetVotes"

	KindRoomCreated Kind = "roomCreated"
	KindJoined      Kind = "joined"
	KindError       Kind = "error"
	KindUpdate      Kind = "update"
)

// MsgRoomNotFound is the message of the error reply to a join on an unknown room.
const MsgRoomNotFound = "Room not found"

// Command is one decoded inbound message. The set of implementations is closed.
type Command interface {
	Kind() Kind
	command()
}

// Create asks for a new room owned by User.
type Create struct {
	User  string
	Title string
}

// Join adds User to a room and asks for its current state.
type Join struct {
	RoomID string
	User   string
}

// Vote records User's vote. Value is kept as raw JSON and echoed back verbatim.
type Vote struct {
	RoomID string
	User   string
	Value  json.RawMessage
}

// UpdateTitle renames a room.
type UpdateTitle struct {
	RoomID string
	User   string
	Title  string
}

// Flip toggles vote visibility.
type Flip struct {
	RoomID string
	User   string
}

// ResetVotes starts a new round.
type ResetVotes struct {
	RoomID string
	User   string
}

func (Create) Kind() Kind      { return KindCreate }
func (Join) Kind() Kind        { return KindJoin }
func (Vote) Kind() Kind        { return KindVote }
func (UpdateTitle) Kind() Kind { return KindUpdateTitle }
func (Flip) Kind() Kind        { return KindFlip }
func (ResetVotes) Kind() Kind  { return KindResetVotes }

func (Create) command()      {}
func (Join) command()        {}
func (Vote) command()        {}
func (UpdateTitle) command() {}
func (Flip) command()        {}
func (ResetVotes) command()  {}

// envelope is the union of every inbound field.
type envelope struct {
	Type   Kind
	RoomID string
	User   string
	Vote   json.RawMessage
	Title  string
}

// Decode parses a raw frame into a Command. Field names are matched exactly.
func Decode(raw []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var env envelope
	targets := map[string]any{
		"type":   &env.Type,
		"roomId": &env.RoomID,
		"user":   &env.User,
		"title":  &env.Title,
	}
	for name, dst := range targets {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
		}
	}
	env.Vote = fields["vote"]

	switch env.Type {
	case KindCreate:
		return Create{User: env.User, Title: env.Title}, nil
	case KindJoin:
		return Join{RoomID: env.RoomID, User: env.User}, nil
	case KindVote:
		return Vote{RoomID: env.RoomID, User: env.User, Value: env.Vote}, nil
	case KindUpdateTitle:
		return UpdateTitle{RoomID: env.RoomID, User: env.User, Title: env.Title}, nil
	case KindFlip:
		return Flip{RoomID: env.RoomID, User: env.User}, nil
	case KindResetVotes:
		return ResetVotes{RoomID: env.RoomID, User: env.User}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// RoomCreated answers a create request
type RoomCreated struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

// Joined answers a join request with the room's state
type Joined struct {
	Type     Kind                       `json:"type"`
	RoomID   string                     `json:"roomId"`
	Title    string                     `json:"title"`
	Votes    map[string]json.RawMessage `json:"votes"`
	Revealed bool                       `json:"revealed"`
}

// Error reports a failed request to its sender
type Error struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// Update carries a room's state after a mutation
type Update struct {
	Type     Kind                       `json:"type"`
	RoomID   string                     `json:"roomId"`
	Title    string                     `json:"title"`
	Votes    map[string]json.RawMessage `json:"votes"`
	Revealed bool                       `json:"revealed"`
}

func NewRoomCreated(snap room.Snapshot) RoomCreated {
	return RoomCreated{Type: KindRoomCreated, RoomID: snap.ID, Title: snap.Title}
}

func NewJoined(snap room.Snapshot) Joined {
	return Joined{
		Type:     KindJoined,
		RoomID:   snap.ID,
		Title:    snap.Title,
		Votes:    wireVotes(snap.Votes),
		Revealed: snap.Revealed,
	}
}

func NewError(message string) Error {
	return Error{Type: KindError, Message: message}
}

func NewUpdate(snap room.Snapshot) Update {
	return Update{
		Type:     KindUpdate,
		RoomID:   snap.ID,
		Title:    snap.Title,
		Votes:    wireVotes(snap.Votes),
		Revealed: snap.Revealed,
	}
}

// EncodeUpdate marshals the update event for a snapshot.
func EncodeUpdate(snap room.Snapshot) ([]byte, error) {
	return json.Marshal(NewUpdate(snap))
}

// wireVotes keeps "votes" an object on the wire, even for a zero Snapshot, and
// leaves out voters whose vote message carried no value.
func wireVotes(votes map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(votes))
	for name, v := range votes {
		if v == nil {
			continue
		}
		out[name] = v
	}
	return out
}
