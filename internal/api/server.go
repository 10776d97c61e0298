package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"uptrack/internal/auth"
	"uptrack/internal/metrics"
	"uptrack/internal/service"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Todos       *service.TodoService
	Users       *service.UserService
	Messages    *service.MessageService
	Resolver    *auth.Resolver
	Metrics     *metrics.Metrics
	Health      func(ctx context.Context) error
	FrontendURL string
	Log         zerolog.Logger
}

// Server routes HTTP requests to the services.
type Server struct {
	router   *mux.Router
	todos    *service.TodoService
	users    *service.UserService
	messages *service.MessageService
	resolver *auth.Resolver
	metrics  *metrics.Metrics
	health   func(ctx context.Context) error
	log      zerolog.Logger
}

func NewServer(d Deps) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		todos:    d.Todos,
		users:    d.Users,
		messages: d.Messages,
		resolver: d.Resolver,
		metrics:  d.Metrics,
		health:   d.Health,
		log:      d.Log.With().Str("component", "http").Logger(),
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.routes(d.FrontendURL)
	return s
}

func (s *Server) routes(frontendURL string) {
	r := s.router
	r.Use(s.requestID, s.observe, cors(frontendURL))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Todos. Fixed segments are registered before {userId} so they win.
	api.HandleFunc("/todos", s.authed(s.handleCreateTodo)).Methods(http.MethodPost)
	api.HandleFunc("/todos", s.authed(s.handleListTodos)).Methods(http.MethodGet)
	api.HandleFunc("/todos/detail/{id}", s.handleGetTodoDetail).Methods(http.MethodGet)
	api.HandleFunc("/todos/supervisor/{id}", s.handleGetSupervisorTodo).Methods(http.MethodGet)
	api.HandleFunc("/todos/{userId}", s.authed(s.handleListUserTodos)).Methods(http.MethodGet)
	api.HandleFunc("/todos/{id}", s.authed(s.handleUpdateTodo)).Methods(http.MethodPut)
	api.HandleFunc("/todos/{id}", s.authed(s.handleDeleteTodo)).Methods(http.MethodDelete)
	api.HandleFunc("/todos/{id}/comment", s.handleCommentTodo).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id}/complete", s.handleCompleteTodo).Methods(http.MethodPut)

	// Supervisor links sent by email.
	api.HandleFunc("/public-todos/{id}", s.handleGetPublicTodo).Methods(http.MethodGet)
	api.HandleFunc("/public-todos/{id}/comment", s.handleCommentTodo).Methods(http.MethodPost)
	api.HandleFunc("/public-todos/{id}/complete", s.handleCompleteTodo).Methods(http.MethodPut)

	// Accounts.
	api.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/users/verify-email/{token}", s.handleVerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/users/resend-verification-code", s.handleResendVerification).Methods(http.MethodPost)
	api.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/users/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)
	api.HandleFunc("/users/current-user", s.authed(s.handleCurrentUser)).Methods(http.MethodGet)
	api.HandleFunc("/users/profile", s.authed(s.handleProfile)).Methods(http.MethodGet)
	api.HandleFunc("/users/telegram", s.authed(s.handleLinkTelegram)).Methods(http.MethodPut)

	// Chat.
	api.HandleFunc("/messages/users", s.authed(s.handleContacts)).Methods(http.MethodGet)
	api.HandleFunc("/messages/send/{id}", s.authed(s.handleSendMessage)).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}", s.authed(s.handleConversation)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.log.Info().Str("addr", addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}
