package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/scrumpoker/game/room"
	"github.com/wricardo/scrumpoker/game/service"
	"github.com/wricardo/scrumpoker/transport/websocket"
)

// RootBanner is the plain-text body served at "/".
const RootBanner = "Scrum Poker Backend"

// Server is the HTTP front door: websocket upgrades, read-only room
// endpoints, health and the MCP endpoint.
type Server struct {
	rooms     *service.RoomService
	hub       *websocket.Hub
	wsHandler websocket.MessageHandler
	mcp       http.HandlerFunc
	logger    *zap.Logger
	router    *mux.Router
}

// NewServer creates a new API server. mcpHandler may be nil, in which case
// /mcp is not mounted.
func NewServer(rooms *service.RoomService, hub *websocket.Hub, wsHandler websocket.MessageHandler, mcpHandler http.HandlerFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rooms:     rooms,
		hub:       hub,
		wsHandler: wsHandler,
		mcp:       mcpHandler,
		logger:    logger,
		router:    mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Read-only room views
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")

	if s.mcp != nil {
		s.router.HandleFunc("/mcp", s.mcp)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(RootBanner))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"rooms":   s.rooms.RoomCount(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.wsHandler)
}

// roomSummary is one row of GET /api/rooms.
type roomSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Creator        string    `json:"creator"`
	MemberCount    int       `json:"member_count"`
	VoteCount      int       `json:"vote_count"`
	Revealed       bool      `json:"revealed"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]roomSummary, 0, len(rooms))
	for _, info := range rooms {
		summaries = append(summaries, roomSummary{
			ID:             info.ID,
			Title:          info.Title,
			Creator:        info.Creator,
			MemberCount:    len(info.Members),
			VoteCount:      len(info.Votes),
			Revealed:       info.Revealed,
			CreatedAt:      info.CreatedAt,
			LastActivityAt: info.LastActivityAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(summaries),
		"rooms": summaries,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	info, err := s.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "Room not found")
			return
		}
		s.logger.Warn("loading room", zap.String("room_id", roomID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}
