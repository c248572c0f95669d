package room

import (
	"encoding/json"
	"sort"
	"time"
)

// DefaultTitle is used when a room is created without a title.
const DefaultTitle = "Untitled"

// Room is a single voting session.
type Room struct {
	ID             string
	Creator        string
	Title          string
	Members        map[string]struct{}
	Votes          map[string]json.RawMessage
	Revealed       bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Snapshot is the observable state of a room that is sent to clients.
type Snapshot struct {
	ID       string
	Title    string
	Votes    map[string]json.RawMessage
	Revealed bool
}

// Info is the operator view of a room used by the REST and MCP surfaces.
type Info struct {
	ID             string                     `json:"id"`
	Title          string                     `json:"title"`
	Creator        string                     `json:"creator"`
	Members        []string                   `json:"members"`
	Votes          map[string]json.RawMessage `json:"votes"`
	Revealed       bool                       `json:"revealed"`
	CreatedAt      time.Time                  `json:"created_at"`
	LastActivityAt time.Time                  `json:"last_activity_at"`
}

// IsCreator reports whether name is the room's creator.
func (r *Room) IsCreator(name string) bool {
	return r.Creator == name
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:       r.ID,
		Title:    r.Title,
		Votes:    copyVotes(r.Votes),
		Revealed: r.Revealed,
	}
}

func (r *Room) info() Info {
	members := make([]string, 0, len(r.Members))
	for name := range r.Members {
		members = append(members, name)
	}
	sort.Strings(members)

	return Info{
		ID:             r.ID,
		Title:          r.Title,
		Creator:        r.Creator,
		Members:        members,
		Votes:          copyVotes(r.Votes),
		Revealed:       r.Revealed,
		CreatedAt:      r.CreatedAt,
		LastActivityAt: r.LastActivityAt,
	}
}

// copyVotes returns a detached copy. The raw values themselves are shared:
// the store only ever replaces them, it never writes into one.
func copyVotes(votes map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(votes))
	for name, v := range votes {
		out[name] = v
	}
	return out
}
