package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatrelay/internal/metrics"
	"chatrelay/internal/presence"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/room"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// ConnectionCounter reports live transport connections without coupling
// the API to the websocket registry implementation.
type ConnectionCounter interface {
	Count() int
}

// Server is the HTTP side surface: room listing, administrative
// rate-limit reset, health, and metrics. No chat semantics live here.
type Server struct {
	rooms    *room.Registry
	presence *presence.Tracker
	limiter  *ratelimit.Limiter
	msgLog   interfaces.MessageLog
	conns    ConnectionCounter
	router   *mux.Router
}

func NewServer(rooms *room.Registry, tracker *presence.Tracker, limiter *ratelimit.Limiter, msgLog interfaces.MessageLog, conns ConnectionCounter) *Server {
	s := &Server{
		rooms:    rooms,
		presence: tracker,
		limiter:  limiter,
		msgLog:   msgLog,
		conns:    conns,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/rooms", s.jsonMiddleware(http.HandlerFunc(s.listRooms))).Methods(http.MethodGet)
	s.router.Handle("/api/ratelimits/{user}", s.jsonMiddleware(http.HandlerFunc(s.resetRateLimit))).Methods(http.MethodDelete)
	s.router.Handle("/health", s.jsonMiddleware(http.HandlerFunc(s.healthCheck))).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type roomListing struct {
	*types.Room
	MemberCount int `json:"memberCount"`
}

type roomsResponse struct {
	Rooms []roomListing `json:"rooms"`
}

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
	Users       int       `json:"users"`
	Rooms       int       `json:"rooms"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// listRooms returns the public room list with live member counts.
func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.rooms.ListPublic()
	listings := make([]roomListing, len(rooms))
	for i, rm := range rooms {
		listings[i] = roomListing{
			Room:        rm,
			MemberCount: s.presence.RoomMemberCount(rm.Name),
		}
	}
	_ = json.NewEncoder(w).Encode(roomsResponse{Rooms: listings})
}

// resetRateLimit clears a user's rate-limit record, lifting any active
// ban. Administrative surface; usernames are client-asserted, so this is
// deliberately not reachable from the chat protocol itself.
func (s *Server) resetRateLimit(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	if user == "" {
		s.sendError(w, "User is required", http.StatusBadRequest)
		return
	}

	s.limiter.Reset(user)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("Rate limit reset for %s", user)})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.msgLog.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.conns.Count(),
		Users:       s.presence.ConnectionCount(),
		Rooms:       s.rooms.Count(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
