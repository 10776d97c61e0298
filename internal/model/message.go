package model

import "time"

// Message is a direct chat message between two users.
type Message struct {
	ID         string    `gorm:"primaryKey;size:24" json:"id"`
	SenderID   string    `gorm:"size:24;index;not null" json:"senderId"`
	ReceiverID string    `gorm:"size:24;index;not null" json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
