package types

import (
	"time"

	"github.com/google/uuid"
)

// TriggerCooldown is the per (user, trigger, channel) "available again at"
// record. A new firing overwrites the row; expired rows are inert and never
// cleaned up, which is fine because the set of trigger ids is small.
type TriggerCooldown struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cooldown_user_trigger_channel;column:user_id" json:"user_id"`
	TriggerID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_cooldown_user_trigger_channel;column:trigger_id" json:"trigger_id"`
	Channel       Channel   `gorm:"type:varchar(16);not null;uniqueIndex:idx_cooldown_user_trigger_channel;column:channel" json:"channel"`
	CooldownUntil time.Time `gorm:"not null;column:cooldown_until" json:"cooldown_until"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (TriggerCooldown) TableName() string {
	return "trigger_cooldown"
}
