package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"uptrack/internal/access"
	"uptrack/internal/service"
)

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type telegramRequest struct {
	ChatID int64 `json:"chatId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decode(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.users.Register(r.Context(), in); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration successful. Check your email to verify your account.",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token, err := s.users.VerifyEmail(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified",
		"token":   token,
	})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	user, err := s.users.CurrentUser(r.Context(), me.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	email, err := s.users.Profile(r.Context(), me.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) handleLinkTelegram(w http.ResponseWriter, r *http.Request, me access.Authenticated) {
	var req telegramRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.LinkTelegram(r.Context(), me.UserID, req.ChatID); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Telegram settings saved"})
}
