// Package httpserver exposes the realtime gateway and its internal hooks over HTTP.
package httpserver

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/observability"
	"chat-realtime/repositories"
	"chat-realtime/services"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
)

type membersResponse struct {
	ChatID  domain.ChatID   `json:"chatId"`
	Members []domain.UserID `json:"members"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes two handlers meant for two listeners.
//
// Public, reachable by clients:
//
//	GET    /ws                                  socket endpoint
//	GET    /presence/{userId}                   presence for members of a shared chat, user token required
//	GET    /healthz                             monitoring snapshot
//
// Internal, reachable by the request layer only, service token required:
//
//	POST   /internal/events/message-created     fanout hooks
//	POST   /internal/events/message-edited
//	POST   /internal/events/message-deleted
//	GET    /internal/chats/{chatId}/members     membership maintenance
//	PUT    /internal/chats/{chatId}/members/{userId}
//	DELETE /internal/chats/{chatId}/members/{userId}
type Server struct {
	log         *slog.Logger
	public      *http.ServeMux
	internal    http.Handler
	verifier    contract.ITokenVerifier
	realtime    services.IRealtimeService
	memberships repositories.IMembershipRepository
	monitoring  *observability.MonitoringManager
}

func NewServer(log *slog.Logger, ws http.Handler, verifier contract.ITokenVerifier, realtime services.IRealtimeService,
	memberships repositories.IMembershipRepository, monitoring *observability.MonitoringManager, serviceToken string) *Server {
	s := &Server{
		log:         log,
		public:      http.NewServeMux(),
		verifier:    verifier,
		realtime:    realtime,
		memberships: memberships,
		monitoring:  monitoring,
	}
	s.public.Handle("GET /ws", ws)
	s.public.HandleFunc("GET /presence/{userId}", s.presence)
	s.public.HandleFunc("GET /healthz", s.health)

	internal := http.NewServeMux()
	internal.HandleFunc("POST /internal/events/message-created", s.messageCreated)
	internal.HandleFunc("POST /internal/events/message-edited", s.messageEdited)
	internal.HandleFunc("POST /internal/events/message-deleted", s.messageDeleted)
	internal.HandleFunc("GET /internal/chats/{chatId}/members", s.listMembers)
	internal.HandleFunc("PUT /internal/chats/{chatId}/members/{userId}", s.addMember)
	internal.HandleFunc("DELETE /internal/chats/{chatId}/members/{userId}", s.removeMember)
	s.internal = auth.RequireServiceToken(log, serviceToken, internal)
	return s
}

// Handler serves the client-facing routes.
func (s *Server) Handler() http.Handler { return s.public }

// InternalHandler serves the request layer hooks behind the service token.
func (s *Server) InternalHandler() http.Handler { return s.internal }

// presence answers 404 for users the caller shares no chat with, the same as
// for unknown users.
func (s *Server) presence(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	userID := domain.UserID(r.PathValue("userId"))
	record, err := s.realtime.Presence(r.Context(), viewer, userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, record)
	case stderrors.Is(err, errors.ErrNoSharedChat):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case stderrors.Is(err, errors.ErrMembershipLoad):
		s.log.Error("Presence lookup failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "membership unavailable"})
	default:
		s.log.Error("Presence lookup failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "presence unavailable"})
	}
}

func (s *Server) authenticate(r *http.Request) (domain.UserID, error) {
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return "", err
	}
	return s.verifier.Verify(token)
}

func (s *Server) messageCreated(w http.ResponseWriter, r *http.Request) {
	var evt event.MessageCreated
	if !s.decode(w, r, &evt) {
		return
	}
	s.accepted(w, s.realtime.OnMessageCreated(r.Context(), evt))
}

func (s *Server) messageEdited(w http.ResponseWriter, r *http.Request) {
	var evt event.MessageEditedEvent
	if !s.decode(w, r, &evt) {
		return
	}
	s.accepted(w, s.realtime.OnMessageEdited(r.Context(), evt))
}

func (s *Server) messageDeleted(w http.ResponseWriter, r *http.Request) {
	var evt event.MessageDeletedEvent
	if !s.decode(w, r, &evt) {
		return
	}
	s.accepted(w, s.realtime.OnMessageDeleted(r.Context(), evt))
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	chatID := domain.ChatID(r.PathValue("chatId"))
	members, err := s.memberships.MembersOf(r.Context(), chatID)
	if err != nil {
		s.log.Error("Failed to list members", "chat_id", chatID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "membership unavailable"})
		return
	}
	if members == nil {
		members = []domain.UserID{}
	}
	writeJSON(w, http.StatusOK, membersResponse{ChatID: chatID, Members: members})
}

// addMember only affects connections opened afterwards, live sockets keep
// the rooms they joined at connect time.
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	chatID, userID := domain.ChatID(r.PathValue("chatId")), domain.UserID(r.PathValue("userId"))
	if err := s.memberships.AddMember(chatID, userID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	chatID, userID := domain.ChatID(r.PathValue("chatId")), domain.UserID(r.PathValue("userId"))
	if err := s.memberships.RemoveMember(chatID, userID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitoring.Refresh())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		s.log.Debug("Domain event refused", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
