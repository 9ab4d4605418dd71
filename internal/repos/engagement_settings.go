package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/types"
)

// SettingsPatch enumerates exactly the mutable settings fields. Nil means
// "leave unchanged"; ClearSnooze distinguishes "unset snooze" from "leave
// snooze alone".
type SettingsPatch struct {
	Enabled         *bool
	FrequencyLevel  *types.FrequencyLevel
	Style           *string
	QuietHoursStart *int
	QuietHoursEnd   *int
	SnoozedUntil    *time.Time
	ClearSnooze     bool
	PushDisabled    *bool
	Timezone        *string
}

func (p SettingsPatch) Empty() bool {
	return p.Enabled == nil && p.FrequencyLevel == nil && p.Style == nil &&
		p.QuietHoursStart == nil && p.QuietHoursEnd == nil &&
		p.SnoozedUntil == nil && !p.ClearSnooze && p.PushDisabled == nil &&
		p.Timezone == nil
}

type EngagementSettingsRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.EngagementSettings, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.EngagementSettings) error
	ApplyPatch(ctx context.Context, tx *gorm.DB, userID uuid.UUID, patch SettingsPatch) error
	// Downgrade steps frequency_level from one rung to the next only if the
	// row still sits on the expected rung. Returns whether a row changed.
	Downgrade(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to types.FrequencyLevel) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type engagementSettingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementSettingsRepo(db *gorm.DB, baseLog *logger.Logger) EngagementSettingsRepo {
	return &engagementSettingsRepo{
		db:  db,
		log: baseLog.With("repo", "EngagementSettingsRepo"),
	}
}

func (r *engagementSettingsRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.EngagementSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.EngagementSettings
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *engagementSettingsRepo) Create(ctx context.Context, tx *gorm.DB, row *types.EngagementSettings) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	// Lazy creation can race with itself; first writer wins.
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *engagementSettingsRepo) ApplyPatch(ctx context.Context, tx *gorm.DB, userID uuid.UUID, patch SettingsPatch) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if patch.Empty() {
		return nil
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Enabled != nil {
		updates["enabled"] = *patch.Enabled
	}
	if patch.FrequencyLevel != nil {
		updates["frequency_level"] = *patch.FrequencyLevel
	}
	if patch.Style != nil {
		updates["style"] = *patch.Style
	}
	if patch.QuietHoursStart != nil {
		updates["quiet_hours_start"] = *patch.QuietHoursStart
	}
	if patch.QuietHoursEnd != nil {
		updates["quiet_hours_end"] = *patch.QuietHoursEnd
	}
	if patch.ClearSnooze {
		updates["snoozed_until"] = nil
	} else if patch.SnoozedUntil != nil {
		updates["snoozed_until"] = patch.SnoozedUntil.UTC()
	}
	if patch.PushDisabled != nil {
		updates["push_disabled"] = *patch.PushDisabled
	}
	if patch.Timezone != nil {
		updates["timezone"] = *patch.Timezone
	}
	return transaction.WithContext(ctx).
		Model(&types.EngagementSettings{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *engagementSettingsRepo) Downgrade(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to types.FrequencyLevel) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.EngagementSettings{}).
		Where("user_id = ? AND frequency_level = ?", userID, from).
		Updates(map[string]any{
			"frequency_level": to,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *engagementSettingsRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.EngagementSettings{}).Error
}
