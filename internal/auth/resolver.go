package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"uptrack/internal/access"
	"uptrack/internal/model"
)

var (
	// ErrUnauthenticated means a token was required or presented and could not be used.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingIdentity means neither a token nor a claimed email was supplied.
	ErrMissingIdentity = errors.New("a token or an email is required")
)

type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver turns request credentials into a principal.
type Resolver struct {
	tokens *Tokens
	users  AccountFinder
}

func NewResolver(tokens *Tokens, users AccountFinder) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve authenticates token when one is present. A rejected token never
// falls back to the claimed email. Without a token, claimedEmail is accepted
// as an unverified assertion only when allowAnonymous is set.
func (r *Resolver) Resolve(ctx context.Context, token, claimedEmail string, allowAnonymous bool) (access.Principal, error) {
	token = strings.TrimSpace(token)
	if token != "" {
		return r.authenticate(ctx, token)
	}
	if !allowAnonymous {
		return nil, ErrUnauthenticated
	}
	email := model.NormalizeEmail(claimedEmail)
	if email == "" {
		return nil, ErrMissingIdentity
	}
	return access.AnonymousSupervisor{ClaimedEmail: email}, nil
}

// Authenticate resolves a token-only request.
func (r *Resolver) Authenticate(ctx context.Context, token string) (access.Authenticated, error) {
	p, err := r.Resolve(ctx, token, "", false)
	if err != nil {
		return access.Authenticated{}, err
	}
	return p.(access.Authenticated), nil
}

func (r *Resolver) authenticate(ctx context.Context, token string) (access.Principal, error) {
	claims, err := r.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	user, err := r.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: account not found", ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return access.Authenticated{
		UserID:   user.ID,
		Email:    model.NormalizeEmail(user.Email),
		Verified: user.IsVerified,
	}, nil
}
