package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"uptrack/internal/auth"
	"uptrack/internal/config"
	"uptrack/internal/model"
	"uptrack/internal/notify"
	"uptrack/internal/repository"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is returned by Login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserService handles accounts: sign-up, verification and sessions.
type UserService struct {
	users      *repository.UserRepository
	tokens     *auth.Tokens
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
	cfg        config.Config
	log        zerolog.Logger
	now        func() time.Time
	hashCost   int
}

func NewUserService(users *repository.UserRepository, tokens *auth.Tokens, notifier notify.Notifier, dispatcher *notify.Dispatcher, cfg config.Config, log zerolog.Logger) *UserService {
	return &UserService{
		users:      users,
		tokens:     tokens,
		notifier:   notifier,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "users").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
		hashCost:   bcrypt.DefaultCost,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := model.NormalizeEmail(in.Email)
	switch n := utf8.RuneCountInString(username); {
	case n < 3 || n > 30:
		return nil, invalid("username", "username must be between 3 and 30 characters")
	case !strings.Contains(email, "@"):
		return nil, invalid("email", "a valid email is required")
	case len(in.Password) < 6:
		return nil, invalid("password", "password must be at least 6 characters")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, expires, err := s.newVerificationToken()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:                       model.NewID(),
		Username:                 username,
		Email:                    email,
		PasswordHash:             string(hash),
		VerificationToken:        &token,
		VerificationTokenExpires: &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.dispatcher.Notify("mail.verification", s.notifier, verificationMessage(s.cfg.FrontendURL, email, token))
	return user, nil
}

// VerifyEmail marks the account holding token verified and returns an access token.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidVerificationToken
	}
	user, err := s.users.FindByVerificationToken(ctx, token, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidVerificationToken
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	err = s.users.Update(ctx, user.ID, map[string]any{
		"is_verified":                true,
		"verification_token":         nil,
		"verification_token_expires": nil,
	})
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(user.ID, s.cfg.AccessTokenTTL)
}

func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	token, expires, err := s.newVerificationToken()
	if err != nil {
		return err
	}
	err = s.users.Update(ctx, user.ID, map[string]any{
		"verification_token":         token,
		"verification_token_expires": expires,
	})
	if err != nil {
		return err
	}

	s.dispatcher.Notify("mail.verification", s.notifier, verificationMessage(s.cfg.FrontendURL, user.Email, token))
	return nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(user.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(user.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.Update(ctx, user.ID, map[string]any{"refresh_token": refresh}); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a stored refresh token for a shorter-lived access token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", ErrInvalidRefreshToken
	}
	user, err := s.users.FindByRefreshToken(ctx, refreshToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil || claims.UserID != user.ID {
		return "", ErrInvalidRefreshToken
	}
	return s.tokens.Issue(user.ID, s.cfg.RefreshedAccessTTL)
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Profile returns the account email only.
func (s *UserService) Profile(ctx context.Context, userID string) (string, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// LinkTelegram stores the chat that receives push notifications. Zero unlinks.
func (s *UserService) LinkTelegram(ctx context.Context, userID string, chatID int64) error {
	var value any
	if chatID != 0 {
		value = chatID
	}
	err := s.users.Update(ctx, userID, map[string]any{"telegram_chat_id": value})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// PurgeExpiredVerification drops verification tokens that can no longer be used.
func (s *UserService) PurgeExpiredVerification(ctx context.Context) error {
	n, err := s.users.PurgeExpiredVerification(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("purged expired verification tokens")
	}
	return nil
}

func (s *UserService) newVerificationToken() (string, time.Time, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), s.now().Add(s.cfg.VerificationTTL), nil
}
