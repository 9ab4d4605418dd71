package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/timewindow"
)

// Quiet-hours defaults, minute-of-day. 23:30 through 08:00 local time.
var (
	DefaultQuietHoursStart = timewindow.Minute(23, 30)
	DefaultQuietHoursEnd   = timewindow.Minute(8, 0)
)

const DefaultTimezone = "UTC"

// EngagementSettings is the per-user engagement preference record. Absence
// of a row is equivalent to the defaults returned by DefaultSettings; the
// row is created lazily on first write.
type EngagementSettings struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:user_id" json:"user_id"`
	// No column default: GORM omits zero-value fields on insert, and a DB
	// default of true would silently flip a row created with Enabled=false.
	// DefaultSettings supplies the enabled-by-default behavior instead.
	Enabled         bool           `gorm:"not null;column:enabled" json:"enabled"`
	FrequencyLevel  FrequencyLevel `gorm:"type:varchar(16);not null;default:'moderate';column:frequency_level" json:"frequency_level"`
	Style           string         `gorm:"type:varchar(32);column:style" json:"style"`
	QuietHoursStart int            `gorm:"not null;column:quiet_hours_start" json:"quiet_hours_start"`
	QuietHoursEnd   int            `gorm:"not null;column:quiet_hours_end" json:"quiet_hours_end"`
	SnoozedUntil    *time.Time     `gorm:"column:snoozed_until" json:"snoozed_until,omitempty"`
	PushDisabled    bool           `gorm:"not null;default:false;column:push_disabled" json:"push_disabled"`
	Timezone        string         `gorm:"type:varchar(64);not null;default:'UTC';column:timezone" json:"timezone"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (EngagementSettings) TableName() string {
	return "engagement_settings"
}

// DefaultSettings is the view served when no row exists for the user.
func DefaultSettings(userID uuid.UUID) *EngagementSettings {
	return &EngagementSettings{
		UserID:          userID,
		Enabled:         true,
		FrequencyLevel:  FrequencyModerate,
		QuietHoursStart: DefaultQuietHoursStart,
		QuietHoursEnd:   DefaultQuietHoursEnd,
		Timezone:        DefaultTimezone,
	}
}

// Location resolves the stored timezone, falling back to UTC on bad data.
func (s *EngagementSettings) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QuietWindow returns the effective quiet-hours bounds, applying defaults
// when the row predates the columns.
func (s *EngagementSettings) QuietWindow() (start, end int) {
	start, end = s.QuietHoursStart, s.QuietHoursEnd
	if start == 0 && end == 0 {
		start, end = DefaultQuietHoursStart, DefaultQuietHoursEnd
	}
	return start, end
}
