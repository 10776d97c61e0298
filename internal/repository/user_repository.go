package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"uptrack/internal/model"
)

// ErrEmailTaken is returned when an account with the same email already exists.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrEmailTaken
	default:
		return fmt.Errorf("create user: %w", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByVerificationToken returns the account holding token if it has not expired at now.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("verification_token = ? AND verification_token_expires > ?", token, now.UTC()).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByRefreshToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("refresh_token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update writes the given columns for the user with id.
func (r *UserRepository) Update(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListExcept returns every account other than id, ordered by username.
func (r *UserRepository) ListExcept(ctx context.Context, id string) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("id <> ?", id).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) ListVerified(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("is_verified = ?", true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list verified users: %w", err)
	}
	return users, nil
}

// EmailForUserID returns the account email for id, or "" when the account is gone.
func (r *UserRepository) EmailForUserID(ctx context.Context, id string) (string, error) {
	user, err := r.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	return user.Email, nil
}

// TelegramChatID returns the linked chat for email. ok is false when no chat is linked.
func (r *UserRepository) TelegramChatID(ctx context.Context, email string) (chatID int64, ok bool, err error) {
	user, err := r.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find user: %w", err)
	}
	if user.TelegramChatID == nil {
		return 0, false, nil
	}
	return *user.TelegramChatID, true, nil
}

// PurgeExpiredVerification clears verification tokens that expired before now.
func (r *UserRepository) PurgeExpiredVerification(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("verification_token IS NOT NULL AND verification_token_expires <= ?", now.UTC()).
		Updates(map[string]any{
			"verification_token":         nil,
			"verification_token_expires": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("purge verification tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
