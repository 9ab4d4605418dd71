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

type TriggerCooldownRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel) (*types.TriggerCooldown, error)
	// Upsert overwrites any live record for the key; there is never more than
	// one row per (user, trigger, channel).
	Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel, until time.Time) error
}

type triggerCooldownRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTriggerCooldownRepo(db *gorm.DB, baseLog *logger.Logger) TriggerCooldownRepo {
	return &triggerCooldownRepo{
		db:  db,
		log: baseLog.With("repo", "TriggerCooldownRepo"),
	}
}

func (r *triggerCooldownRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel) (*types.TriggerCooldown, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || triggerID == "" {
		return nil, nil
	}
	var row types.TriggerCooldown
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND trigger_id = ? AND channel = ?", userID, triggerID, ch).
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

func (r *triggerCooldownRepo) Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel, until time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	row := &types.TriggerCooldown{
		ID:            uuid.New(),
		UserID:        userID,
		TriggerID:     triggerID,
		Channel:       ch,
		CooldownUntil: until.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "trigger_id"}, {Name: "channel"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"cooldown_until", "updated_at",
			}),
		}).
		Create(row).Error
}
