package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/types"
)

type TriggerHistoryRepo interface {
	Append(ctx context.Context, tx *gorm.DB, row *types.TriggerHistory) (*types.TriggerHistory, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TriggerHistory, error)
	CountFiredBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel, from, to time.Time) (int64, error)
	// LastFiredAt returns the most recent firing across channels, or nil when
	// the trigger never fired for this user.
	LastFiredAt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string) (*time.Time, error)
	// Annotate attaches a feedback tag to an entry. Returns whether a row
	// matched.
	Annotate(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID uuid.UUID, feedback string) (bool, error)
}

type triggerHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTriggerHistoryRepo(db *gorm.DB, baseLog *logger.Logger) TriggerHistoryRepo {
	return &triggerHistoryRepo{
		db:  db,
		log: baseLog.With("repo", "TriggerHistoryRepo"),
	}
}

func (r *triggerHistoryRepo) Append(ctx context.Context, tx *gorm.DB, row *types.TriggerHistory) (*types.TriggerHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.FiredAt.IsZero() {
		row.FiredAt = now
	}
	if row.Status == "" {
		row.Status = types.HistoryStatusShown
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *triggerHistoryRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TriggerHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.TriggerHistory
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
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

func (r *triggerHistoryRepo) CountFiredBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string, ch types.Channel, from, to time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.TriggerHistory{}).
		Where("user_id = ? AND trigger_id = ? AND channel = ? AND fired_at >= ? AND fired_at < ?",
			userID, triggerID, ch, from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *triggerHistoryRepo) LastFiredAt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggerID string) (*time.Time, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.TriggerHistory
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND trigger_id = ?", userID, triggerID).
		Order("fired_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	t := row.FiredAt
	return &t, nil
}

func (r *triggerHistoryRepo) Annotate(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID uuid.UUID, feedback string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.TriggerHistory{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"feedback":   feedback,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
