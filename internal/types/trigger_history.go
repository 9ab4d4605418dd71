package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TriggerHistory is the append-only log of fired (not merely evaluated)
// triggers. It doubles as the audit trail and as input to the session
// tracker's once-a-day and recent-firing checks.
type TriggerHistory struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_history_user_trigger;column:user_id" json:"user_id"`
	TriggerID  string         `gorm:"type:varchar(64);not null;index:idx_history_user_trigger;column:trigger_id" json:"trigger_id"`
	Channel    Channel        `gorm:"type:varchar(16);not null;column:channel" json:"channel"`
	TemplateID string         `gorm:"type:varchar(128);not null;column:template_id" json:"template_id"`
	Status     string         `gorm:"type:varchar(16);not null;column:status" json:"status"`
	Feedback   *string        `gorm:"type:varchar(32);column:feedback" json:"feedback,omitempty"`
	Data       datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
	FiredAt    time.Time      `gorm:"not null;index;column:fired_at" json:"fired_at"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (TriggerHistory) TableName() string {
	return "trigger_history"
}
