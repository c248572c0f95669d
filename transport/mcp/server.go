package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/game/room"
)

// Rooms is the room service surface the tools drive.
type Rooms interface {
	CreateRoom(ctx context.Context, creator, title string) (room.Snapshot, error)
	JoinRoom(ctx context.Context, roomID, user string) (room.Snapshot, error)
	Vote(ctx context.Context, roomID, user string, value json.RawMessage) (room.Snapshot, error)
	UpdateTitle(ctx context.Context, roomID, requester, title string) (room.Snapshot, error)
	Flip(ctx context.Context, roomID, requester string) (room.Snapshot, error)
	ResetVotes(ctx context.Context, roomID, requester string) (room.Snapshot, error)
	GetRoom(ctx context.Context, roomID string) (room.Info, error)
	ListRooms(ctx context.Context) ([]room.Info, error)
}

// Server exposes the room service as MCP tools.
type Server struct {
	rooms     Rooms
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server backed by rooms
func NewServer(rooms Rooms, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{rooms: rooms, logger: logger}

	s.mcpServer = server.NewMCPServer(
		"Scrum Poker",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Scrum Poker - MCP Interface

Drive planning-poker rooms shared with browser clients. Every change made
here is pushed live to connected players.

AVAILABLE TOOLS:
- create_room: Open a room; the creator alone may rename, flip and reset it
- join_room: Add a participant to a room
- cast_vote: Record or overwrite a participant's vote
- update_title: Rename a room (creator only)
- flip_votes: Toggle whether votes are revealed (creator only)
- reset_votes: Clear all votes and hide them again (creator only)
- get_room: Show one room with members and votes
- list_rooms: List every open room

NOTE: names are self-asserted display names, not accounts.`),
	)

	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for serving
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the server on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleHTTP serves one JSON-RPC message per POST request.
func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := s.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications carry no response.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("encoding mcp response", zap.Error(err))
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(responseData)
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new poker room. The creator is the only one who may rename, flip or reset it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user":  stringProp("Display name of the creator"),
				"title": stringProp("Room title (optional, defaults to \"Untitled\")"),
			},
			Required: []string{"user"},
		},
	}, s.handleCreateRoom)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Add a participant to an existing room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
				"user":    stringProp("Display name of the participant"),
			},
			Required: []string{"room_id", "user"},
		},
	}, s.handleJoinRoom)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "cast_vote",
		Description: "Record a participant's vote, replacing any earlier vote",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
				"user":    stringProp("Display name of the voter"),
				"vote": map[string]interface{}{
					"description": "Vote value, usually a card such as \"5\", \"13\" or \"?\"",
				},
			},
			Required: []string{"room_id", "user", "vote"},
		},
	}, s.handleCastVote)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "update_title",
		Description: "Rename a room (creator only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
				"user":    stringProp("Display name of the room creator"),
				"title":   stringProp("New title"),
			},
			Required: []string{"room_id", "user", "title"},
		},
	}, s.handleUpdateTitle)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_votes",
		Description: "Toggle whether votes are revealed (creator only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
				"user":    stringProp("Display name of the room creator"),
			},
			Required: []string{"room_id", "user"},
		},
	}, s.handleFlipVotes)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_votes",
		Description: "Clear all votes and hide them again (creator only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
				"user":    stringProp("Display name of the room creator"),
			},
			Required: []string{"room_id", "user"},
		},
	}, s.handleResetVotes)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get a room's title, creator, members and votes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
			},
			Required: []string{"room_id"},
		},
	}, s.handleGetRoom)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all open rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListRooms)
}

// Tool handlers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func requireString(args map[string]interface{}, key string) (string, *mcp.CallToolResult) {
	v, _ := args[key].(string)
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("%s is required", key))
	}
	return v, nil
}

// toolError turns a service error into a tool result. Tool callers see
// failures explicitly.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug("mcp tool failed", zap.String("tool", tool), zap.Error(err))
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return mcp.NewToolResultError("Room not found")
	case errors.Is(err, room.ErrUnauthorized):
		return mcp.NewToolResultError("Only the room creator can do that")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}
	title, _ := args["title"].(string)

	snap, err := s.rooms.CreateRoom(ctx, user, title)
	if err != nil {
		return s.toolError("create_room", err), nil
	}

	result := fmt.Sprintf("Created room: %s\nTitle: %s\nCreator: %s\n", snap.ID, snap.Title, user)
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}

	snap, err := s.rooms.JoinRoom(ctx, roomID, user)
	if err != nil {
		return s.toolError("join_room", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s joined.\n\n%s", user, formatSnapshot(snap))), nil
}

func (s *Server) handleCastVote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}
	raw, ok := args["vote"]
	if !ok {
		return mcp.NewToolResultError("vote is required"), nil
	}
	value, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid vote: %v", err)), nil
	}

	snap, err := s.rooms.Vote(ctx, roomID, user, value)
	if err != nil {
		return s.toolError("cast_vote", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Vote recorded for %s.\n\n%s", user, formatSnapshot(snap))), nil
}

func (s *Server) handleUpdateTitle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}
	title, _ := args["title"].(string)

	snap, err := s.rooms.UpdateTitle(ctx, roomID, user, title)
	if err != nil {
		return s.toolError("update_title", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Title updated.\n\n%s", formatSnapshot(snap))), nil
}

func (s *Server) handleFlipVotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}

	snap, err := s.rooms.Flip(ctx, roomID, user)
	if err != nil {
		return s.toolError("flip_votes", err), nil
	}

	state := "hidden"
	if snap.Revealed {
		state = "revealed"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Votes are now %s.\n\n%s", state, formatSnapshot(snap))), nil
}

func (s *Server) handleResetVotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}
	user, errResult := requireString(args, "user")
	if errResult != nil {
		return errResult, nil
	}

	snap, err := s.rooms.ResetVotes(ctx, roomID, user)
	if err != nil {
		return s.toolError("reset_votes", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Votes cleared.\n\n%s", formatSnapshot(snap))), nil
}

func (s *Server) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, errResult := requireString(args, "room_id")
	if errResult != nil {
		return errResult, nil
	}

	info, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return s.toolError("get_room", err), nil
	}

	return mcp.NewToolResultText(formatRoomInfo(info)), nil
}

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return s.toolError("list_rooms", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s %q (Creator: %s, Members: %d, Votes: %d, Created: %s)\n",
			r.ID, r.Title, r.Creator, len(r.Members), len(r.Votes), r.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Formatting helpers

func formatSnapshot(snap room.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\nTitle: %s\nRevealed: %t\n", snap.ID, snap.Title, snap.Revealed)
	writeVotes(&b, snap.Votes)
	return b.String()
}

func formatRoomInfo(info room.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\nTitle: %s\nCreator: %s\nRevealed: %t\n", info.ID, info.Title, info.Creator, info.Revealed)
	fmt.Fprintf(&b, "Members (%d): %s\n", len(info.Members), strings.Join(info.Members, ", "))
	writeVotes(&b, info.Votes)
	fmt.Fprintf(&b, "Created: %s\nLast activity: %s\n",
		info.CreatedAt.Format("2006-01-02 15:04:05"), info.LastActivityAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

func writeVotes(b *strings.Builder, votes map[string]json.RawMessage) {
	fmt.Fprintf(b, "Votes (%d):\n", len(votes))
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := "null"
		if v := votes[name]; v != nil {
			value = string(v)
		}
		fmt.Fprintf(b, "  %s: %s\n", name, value)
	}
}
