package model

import "time"

// User is a registered account.
type User struct {
	ID                       string     `gorm:"primaryKey;size:24" json:"id"`
	Username                 string     `gorm:"not null" json:"username"`
	Email                    string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash             string     `json:"-"`
	IsVerified               bool       `json:"isVerified"`
	VerificationToken        *string    `gorm:"index" json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	RefreshToken             *string    `gorm:"index" json:"-"`
	TelegramChatID           *int64     `json:"telegramChatId,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}
