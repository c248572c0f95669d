package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/game/room"
)

// Broadcaster delivers a room's state to connected clients.
// It is called with the service lock held and must not block.
type Broadcaster interface {
	BroadcastUpdate(snap room.Snapshot)
}

// RoomService serializes every room mutation in the process
type RoomService struct {
	store       *room.Store
	broadcaster Broadcaster
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewRoomService creates a new room service. A nil broadcaster disables fan-out.
func NewRoomService(store *room.Store, broadcaster Broadcaster, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Do runs fn while holding the service lock. tx must not be used after fn returns.
func (s *RoomService) Do(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&Tx{s: s})
}

// Tx exposes the room operations inside Do.
type Tx struct {
	s *RoomService
}

// CreateRoom creates a room. It replies to nobody and broadcasts nothing.
func (tx *Tx) CreateRoom(creator, title string) room.Snapshot {
	snap := tx.s.store.Create(creator, title)
	tx.s.logger.Info("room created",
		zap.String("room_id", snap.ID),
		zap.String("creator", creator),
		zap.String("title", snap.Title),
	)
	return snap
}

// JoinRoom adds user to a room and returns its state. Nothing is broadcast.
func (tx *Tx) JoinRoom(roomID, user string) (room.Snapshot, error) {
	snap, err := tx.s.store.Join(roomID, user)
	if err != nil {
		return room.Snapshot{}, err
	}
	tx.s.logger.Debug("member joined",
		zap.String("room_id", roomID),
		zap.String("user", user),
	)
	return snap, nil
}

// Vote records a vote and broadcasts the update
func (tx *Tx) Vote(roomID, user string, value json.RawMessage) (room.Snapshot, error) {
	return tx.broadcast(tx.s.store.RecordVote(roomID, user, value))
}

// UpdateTitle renames a room and broadcasts the update
func (tx *Tx) UpdateTitle(roomID, requester, title string) (room.Snapshot, error) {
	return tx.broadcast(tx.s.store.UpdateTitle(roomID, requester, title))
}

// Flip toggles vote visibility and broadcasts the update
func (tx *Tx) Flip(roomID, requester string) (room.Snapshot, error) {
	return tx.broadcast(tx.s.store.Flip(roomID, requester))
}

// ResetVotes clears the round and broadcasts the update
func (tx *Tx) ResetVotes(roomID, requester string) (room.Snapshot, error) {
	return tx.broadcast(tx.s.store.ResetVotes(roomID, requester))
}

func (tx *Tx) broadcast(snap room.Snapshot, err error) (room.Snapshot, error) {
	if err != nil {
		return room.Snapshot{}, err
	}
	if tx.s.broadcaster != nil {
		tx.s.broadcaster.BroadcastUpdate(snap)
	}
	return snap, nil
}

// CreateRoom creates a room owned by creator
func (s *RoomService) CreateRoom(ctx context.Context, creator, title string) (room.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return room.Snapshot{}, err
	}
	var snap room.Snapshot
	s.Do(func(tx *Tx) { snap = tx.CreateRoom(creator, title) })
	return snap, nil
}

// JoinRoom adds user to a room
func (s *RoomService) JoinRoom(ctx context.Context, roomID, user string) (room.Snapshot, error) {
	return s.run(ctx, func(tx *Tx) (room.Snapshot, error) { return tx.JoinRoom(roomID, user) })
}

// Vote records user's vote
func (s *RoomService) Vote(ctx context.Context, roomID, user string, value json.RawMessage) (room.Snapshot, error) {
	return s.run(ctx, func(tx *Tx) (room.Snapshot, error) { return tx.Vote(roomID, user, value) })
}

// UpdateTitle renames a room
func (s *RoomService) UpdateTitle(ctx context.Context, roomID, requester, title string) (room.Snapshot, error) {
	return s.run(ctx, func(tx *Tx) (room.Snapshot, error) { return tx.UpdateTitle(roomID, requester, title) })
}

// Flip toggles vote visibility
func (s *RoomService) Flip(ctx context.Context, roomID, requester string) (room.Snapshot, error) {
	return s.run(ctx, func(tx *Tx) (room.Snapshot, error) { return tx.Flip(roomID, requester) })
}

// ResetVotes clears the round
func (s *RoomService) ResetVotes(ctx context.Context, roomID, requester string) (room.Snapshot, error) {
	return s.run(ctx, func(tx *Tx) (room.Snapshot, error) { return tx.ResetVotes(roomID, requester) })
}

func (s *RoomService) run(ctx context.Context, op func(tx *Tx) (room.Snapshot, error)) (room.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return room.Snapshot{}, err
	}
	var (
		snap room.Snapshot
		err  error
	)
	s.Do(func(tx *Tx) { snap, err = op(tx) })
	return snap, err
}

// GetRoom returns the operator view of a room. Reads do not take the service lock.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (room.Info, error) {
	if err := ctx.Err(); err != nil {
		return room.Info{}, err
	}
	return s.store.Get(roomID)
}

// ListRooms returns every room ordered by creation time
func (s *RoomService) ListRooms(ctx context.Context) ([]room.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.List(), nil
}

// RoomCount returns the number of rooms
func (s *RoomService) RoomCount() int {
	return s.store.Count()
}

// CleanupIdleRooms evicts rooms idle for longer than maxIdle
func (s *RoomService) CleanupIdleRooms(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CleanupIdleRooms(maxIdle)
}

// RunIdleEviction periodically evicts idle rooms until ctx is cancelled.
// A non-positive ttl or interval disables eviction and returns immediately.
func (s *RoomService) RunIdleEviction(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.CleanupIdleRooms(ttl); removed > 0 {
				s.logger.Info("evicted idle rooms",
					zap.Int("removed", removed),
					zap.Int("remaining", s.store.Count()),
				)
			}
		}
	}
}
