package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUnauthorized = errors.New("requester is not the room creator")
)

// Store holds every room in the process
type Store struct {
	rooms map[string]*Room
	mu    sync.RWMutex

	newID func() string
	now   func() time.Time
}

// NewStore creates an empty room store
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Create creates a new room owned by creator and returns its snapshot.
// An empty title becomes DefaultTitle.
func (s *Store) Create(creator, title string) Snapshot {
	if title == "" {
		title = DefaultTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for s.exists(id) {
		id = s.newID()
	}

	now := s.now()
	r := &Room{
		ID:             id,
		Creator:        creator,
		Title:          title,
		Members:        map[string]struct{}{creator: {}},
		Votes:          make(map[string]json.RawMessage),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.rooms[id] = r

	return r.snapshot()
}

// Get returns a detached view of the room
func (s *Store) Get(id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return Info{}, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return r.info(), nil
}

// Join adds user to the room's members. Joining twice is a no-op.
func (s *Store) Join(id, user string) (Snapshot, error) {
	return s.mutate(id, func(r *Room) error {
		r.Members[user] = struct{}{}
		return nil
	})
}

// RecordVote sets or overwrites the vote of user. Neither membership nor the
// value is checked.
func (s *Store) RecordVote(id, user string, vote json.RawMessage) (Snapshot, error) {
	return s.mutate(id, func(r *Room) error {
		r.Votes[user] = vote
		return nil
	})
}

// UpdateTitle renames the room. Only the creator may do this.
func (s *Store) UpdateTitle(id, requester, title string) (Snapshot, error) {
	return s.mutate(id, func(r *Room) error {
		if !r.IsCreator(requester) {
			return ErrUnauthorized
		}
		r.Title = title
		return nil
	})
}

// Flip toggles whether votes are revealed. Only the creator may do this.
func (s *Store) Flip(id, requester string) (Snapshot, error) {
	return s.mutate(id, func(r *Room) error {
		if !r.IsCreator(requester) {
			return ErrUnauthorized
		}
		r.Revealed = !r.Revealed
		return nil
	})
}

// ResetVotes clears all votes and hides them again. Only the creator may do this.
func (s *Store) ResetVotes(id, requester string) (Snapshot, error) {
	return s.mutate(id, func(r *Room) error {
		if !r.IsCreator(requester) {
			return ErrUnauthorized
		}
		r.Votes = make(map[string]json.RawMessage)
		r.Revealed = false
		return nil
	})
}

// List returns all rooms ordered by creation time
func (s *Store) List() []Info {
	s.mu.RLock()
	result := make([]Info, 0, len(s.rooms))
	for _, r := range s.rooms {
		result = append(result, r.info())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of rooms
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// CleanupIdleRooms removes rooms that have not been mutated within maxIdle
// and returns how many were removed.
func (s *Store) CleanupIdleRooms(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	removed := 0

	for id, r := range s.rooms {
		if r.LastActivityAt.Before(cutoff) {
			delete(s.rooms, id)
			removed++
		}
	}

	return removed
}

// mutate applies fn to the room under the write lock. The room's activity
// time only advances when fn succeeds.
func (s *Store) mutate(id string, fn func(r *Room) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}

	if err := fn(r); err != nil {
		return Snapshot{}, fmt.Errorf("room %q: %w", id, err)
	}

	r.LastActivityAt = s.now()
	return r.snapshot(), nil
}

func (s *Store) exists(id string) bool {
	_, ok := s.rooms[id]
	return ok
}
