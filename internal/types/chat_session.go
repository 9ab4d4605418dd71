package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession records one chat session's lifecycle as reported by the chat
// surface. StartedAt never changes after creation; the engine patches
// activity fields and sets EndedAt, and never deletes rows.
type ChatSession struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Timezone       string     `gorm:"type:varchar(64);not null;default:'UTC';column:timezone" json:"timezone"`
	StartedAt      time.Time  `gorm:"not null;index;column:started_at" json:"started_at"`
	EndedAt        *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	LastActivityAt time.Time  `gorm:"not null;column:last_activity_at" json:"last_activity_at"`
	MessagesCount  int        `gorm:"not null;default:0;column:messages_count" json:"messages_count"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (ChatSession) TableName() string {
	return "chat_session"
}

// Location resolves the session's reported timezone, falling back to UTC.
func (s *ChatSession) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
