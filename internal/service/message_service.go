package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"uptrack/internal/model"
	"uptrack/internal/repository"
)

// SendMessageInput is a chat message body. Image is a URL uploaded elsewhere.
type SendMessageInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// MessageService backs the peer chat.
type MessageService struct {
	users    *repository.UserRepository
	messages *repository.MessageRepository
}

func NewMessageService(users *repository.UserRepository, messages *repository.MessageRepository) *MessageService {
	return &MessageService{users: users, messages: messages}
}

// Contacts lists everyone the caller can chat with.
func (s *MessageService) Contacts(ctx context.Context, me string) ([]model.User, error) {
	return s.users.ListExcept(ctx, me)
}

func (s *MessageService) Conversation(ctx context.Context, me, rawOther string) ([]model.Message, error) {
	other, err := model.ParseID(rawOther)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.messages.Conversation(ctx, me, other)
}

func (s *MessageService) Send(ctx context.Context, me, rawOther string, in SendMessageInput) (*model.Message, error) {
	other, err := model.ParseID(rawOther)
	if err != nil {
		return nil, ErrInvalidID
	}
	text := strings.TrimSpace(in.Text)
	image := strings.TrimSpace(in.Image)
	if text == "" && image == "" {
		return nil, invalid("text", "text or image is required")
	}

	if _, err := s.users.FindByID(ctx, other); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find receiver: %w", err)
	}

	msg := &model.Message{
		ID:         model.NewID(),
		SenderID:   me,
		ReceiverID: other,
		Text:       text,
		Image:      image,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
