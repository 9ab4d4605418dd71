package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/types"
)

type ChatSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ChatSession) (*types.ChatSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error)
	// Touch patches the activity fields of a live session.
	Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastActivityAt time.Time, messagesCount int) error
	End(ctx context.Context, tx *gorm.DB, id uuid.UUID, endedAt time.Time) error
	CountStartedBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) (int64, error)
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return &chatSessionRepo{
		db:  db,
		log: baseLog.With("repo", "ChatSessionRepo"),
	}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ChatSession) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	if row.LastActivityAt.IsZero() {
		row.LastActivityAt = row.StartedAt
	}
	if row.Timezone == "" {
		row.Timezone = types.DefaultTimezone
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.ChatSession
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

func (r *chatSessionRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastActivityAt time.Time, messagesCount int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{
		"last_activity_at": lastActivityAt.UTC(),
		"updated_at":       time.Now().UTC(),
	}
	if messagesCount > 0 {
		updates["messages_count"] = messagesCount
	}
	return transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *chatSessionRepo) End(ctx context.Context, tx *gorm.DB, id uuid.UUID, endedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"ended_at":         endedAt.UTC(),
			"last_activity_at": endedAt.UTC(),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *chatSessionRepo) CountStartedBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("user_id = ? AND started_at >= ? AND started_at < ?", userID, from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
