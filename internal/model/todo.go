package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Priority ranks a todo.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Subtodo is a checklist entry inside a todo.
type Subtodo struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Subtodos is stored as a JSON text column.
type Subtodos []Subtodo

func (s Subtodos) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *Subtodos) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = Subtodos{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan subtodos: unsupported type %T", value)
	}
	if len(data) == 0 {
		*s = Subtodos{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// Todo is a single tracked item. UserID is the owner; AssignedTo is the
// lower-cased email of a supervisor who can act on it without an account.
type Todo struct {
	ID           string     `gorm:"primaryKey;size:24" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `json:"description"`
	Completed    bool       `json:"completed"`
	Priority     Priority   `gorm:"size:8" json:"priority"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Subtodos     Subtodos   `gorm:"type:text" json:"subtodos"`
	ShowSubtasks bool       `json:"showSubtasks"`
	UserID       string     `gorm:"size:24;index;not null" json:"userId,omitempty"`
	Supervisor   *string    `gorm:"size:24" json:"supervisor,omitempty"`
	AssignedTo   *string    `gorm:"index" json:"assignedTo,omitempty"`
	Comments     []Comment  `gorm:"foreignKey:TodoID" json:"comments"`
	CompletedBy  *string    `json:"completedBy,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Comment is append-only; Author is an account email or a claimed supervisor email.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	TodoID    string    `gorm:"size:24;index;not null" json:"-"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName keeps comments next to todos.
func (Comment) TableName() string {
	return "todo_comments"
}

// IsAssignedTo reports whether email (in any letter case) is the todo's supervisor.
func (t *Todo) IsAssignedTo(email string) bool {
	if t.AssignedTo == nil || *t.AssignedTo == "" {
		return false
	}
	normalized := NormalizeEmail(email)
	return normalized != "" && normalized == NormalizeEmail(*t.AssignedTo)
}

// Redacted returns a copy without ownership fields, for callers that are not
// authenticated against an account.
func (t Todo) Redacted() Todo {
	t.UserID = ""
	t.Supervisor = nil
	return t
}
