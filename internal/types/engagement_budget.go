package types

import (
	"time"

	"github.com/google/uuid"
)

// EngagementBudget is the per-user nudge budget ledger: used/limit counters
// for each channel and scope. Counters reset lazily when an operation
// observes a day or week boundary past last_updated_at; there is no sweep.
type EngagementBudget struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:user_id" json:"user_id"`

	UsedInAppDay   int `gorm:"not null;default:0;column:used_in_app_day" json:"used_in_app_day"`
	UsedInAppWeek  int `gorm:"not null;default:0;column:used_in_app_week" json:"used_in_app_week"`
	UsedPushDay    int `gorm:"not null;default:0;column:used_push_day" json:"used_push_day"`
	UsedPushWeek   int `gorm:"not null;default:0;column:used_push_week" json:"used_push_week"`
	LimitInAppDay  int `gorm:"not null;default:0;column:limit_in_app_day" json:"limit_in_app_day"`
	LimitInAppWeek int `gorm:"not null;default:0;column:limit_in_app_week" json:"limit_in_app_week"`
	LimitPushDay   int `gorm:"not null;default:0;column:limit_push_day" json:"limit_push_day"`
	LimitPushWeek  int `gorm:"not null;default:0;column:limit_push_week" json:"limit_push_week"`

	LastUpdatedAt time.Time `gorm:"not null;column:last_updated_at" json:"last_updated_at"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (EngagementBudget) TableName() string {
	return "engagement_budget"
}

// Used returns the used counter for a channel/scope pair.
func (b *EngagementBudget) Used(ch Channel, sc Scope) int {
	switch {
	case ch == ChannelInApp && sc == ScopeDay:
		return b.UsedInAppDay
	case ch == ChannelInApp && sc == ScopeWeek:
		return b.UsedInAppWeek
	case ch == ChannelPush && sc == ScopeDay:
		return b.UsedPushDay
	default:
		return b.UsedPushWeek
	}
}

// Limit returns the limit for a channel/scope pair.
func (b *EngagementBudget) Limit(ch Channel, sc Scope) int {
	switch {
	case ch == ChannelInApp && sc == ScopeDay:
		return b.LimitInAppDay
	case ch == ChannelInApp && sc == ScopeWeek:
		return b.LimitInAppWeek
	case ch == ChannelPush && sc == ScopeDay:
		return b.LimitPushDay
	default:
		return b.LimitPushWeek
	}
}

// BudgetLimits is a plain limits tuple, seeded from the policy table for the
// user's frequency level.
type BudgetLimits struct {
	InAppDay  int `yaml:"in_app_day" json:"in_app_day"`
	InAppWeek int `yaml:"in_app_week" json:"in_app_week"`
	PushDay   int `yaml:"push_day" json:"push_day"`
	PushWeek  int `yaml:"push_week" json:"push_week"`
}
