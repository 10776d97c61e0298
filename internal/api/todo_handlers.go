package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"uptrack/internal/access"
	"uptrack/internal/model"
	"uptrack/internal/service"
)

type commentRequest struct {
	Text  string `json:"text"`
	Email string `json:"email"`
}

type completeRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	var in service.CreateTodoInput
	if err := decode(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.Create(r.Context(), me, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, todo)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	todos, err := s.todos.List(r.Context(), me)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	respondJSON(w, http.StatusOK, todos)
}

// handleListUserTodos only serves the caller's own list.
func (s *Server) handleListUserTodos(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	if mux.Vars(r)["userId"] != me.UserID {
		respondError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}
	s.handleListTodos(w, r, me)
}

func (s *Server) handleGetTodoDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := q.Get("supervisor")
	if email == "" {
		email = q.Get("email")
	}
	s.getTodo(w, r, email)
}

// handleGetSupervisorTodo serves the emailed supervisor link. Only the
// claimed email counts here.
func (s *Server) handleGetSupervisorTodo(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolver.Resolve(r.Context(), "", r.URL.Query().Get("email"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

func (s *Server) handleGetPublicTodo(w http.ResponseWriter, r *http.Request) {
	s.getTodo(w, r, r.URL.Query().Get("email"))
}

func (s *Server) getTodo(w http.ResponseWriter, r *http.Request, claimedEmail string) {
	p, err := s.principal(r, claimedEmail)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	var patch service.UpdateTodoInput
	if err := decode(w, r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.Update(r.Context(), me, mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	if err := s.todos.Delete(r.Context(), me, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted"})
}

func (s *Server) handleCommentTodo(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.principal(r, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.AddComment(r.Context(), p, mux.Vars(r)["id"], req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, todo)
}

func (s *Server) handleCompleteTodo(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	email := req.Email
	if email == "" {
		email = strings.TrimSpace(r.URL.Query().Get("email"))
	}
	p, err := s.principal(r, email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	todo, err := s.todos.Complete(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, todo)
}
