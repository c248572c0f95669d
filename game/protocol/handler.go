package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/game/room"
	"github.com/wricardo/scrumpoker/game/service"
)

// Session is the connection a message arrived on.
type Session interface {
	// Send queues payload for this connection only. It reports false when the
	// connection is closed or its buffer is full.
	Send(payload []byte) bool
	// Subscribe marks the session as interested in roomID's updates.
	Subscribe(roomID string)
}

// Rooms runs a callback inside the room service's critical section.
type Rooms interface {
	Do(fn func(tx *service.Tx))
}

// Handler dispatches inbound frames
type Handler struct {
	rooms  Rooms
	logger *zap.Logger
}

// NewHandler creates a protocol handler backed by rooms
func NewHandler(rooms Rooms, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{rooms: rooms, logger: logger}
}

// Handle decodes raw and applies it. It never returns an error and never
// panics on client input: failures are logged and dropped.
func (h *Handler) Handle(ctx context.Context, sess Session, raw []byte) {
	if ctx.Err() != nil {
		return
	}

	cmd, err := Decode(raw)
	if err != nil {
		h.logger.Debug("dropping inbound message", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}

	h.rooms.Do(func(tx *service.Tx) {
		h.dispatch(tx, sess, cmd)
	})
}

func (h *Handler) dispatch(tx *service.Tx, sess Session, cmd Command) {
	switch c := cmd.(type) {
	case Create:
		snap := tx.CreateRoom(c.User, c.Title)
		sess.Subscribe(snap.ID)
		h.reply(sess, NewRoomCreated(snap))

	case Join:
		snap, err := tx.JoinRoom(c.RoomID, c.User)
		if err != nil {
			h.logDrop(cmd, c.RoomID, err)
			if errors.Is(err, room.ErrRoomNotFound) {
				h.reply(sess, NewError(MsgRoomNotFound))
			}
			return
		}
		sess.Subscribe(snap.ID)
		h.reply(sess, NewJoined(snap))

	case Vote:
		_, err := tx.Vote(c.RoomID, c.User, c.Value)
		h.logDrop(cmd, c.RoomID, err)

	case UpdateTitle:
		_, err := tx.UpdateTitle(c.RoomID, c.User, c.Title)
		h.logDrop(cmd, c.RoomID, err)

	case Flip:
		_, err := tx.Flip(c.RoomID, c.User)
		h.logDrop(cmd, c.RoomID, err)

	case ResetVotes:
		_, err := tx.ResetVotes(c.RoomID, c.User)
		h.logDrop(cmd, c.RoomID, err)
	}
}

func (h *Handler) reply(sess Session, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding reply", zap.Error(err))
		return
	}
	if !sess.Send(payload) {
		h.logger.Debug("reply not delivered, session closed or full")
	}
}

func (h *Handler) logDrop(cmd Command, roomID string, err error) {
	if err == nil {
		return
	}
	h.logger.Debug("request dropped",
		zap.String("type", string(cmd.Kind())),
		zap.String("room_id", roomID),
		zap.Error(err),
	)
}
