package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"uptrack/internal/access"
	"uptrack/internal/service"
)

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	users, err := s.messages.Contacts(r.Context(), me.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	messages, err := s.messages.Conversation(r.Context(), me.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	var in service.SendMessageInput
	if err := decode(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.messages.Send(r.Context(), me.UserID, mux.Vars(r)["id"], in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
