package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/timewindow"
	"github.com/qingtalk/guanzhao/internal/types"
)

// ConsumeResult reports the outcome of a budget consume. On rejection the
// stored counters are untouched.
type ConsumeResult struct {
	Accepted      bool `json:"accepted"`
	UsedDay       int  `json:"used_day"`
	UsedWeek      int  `json:"used_week"`
	RemainingDay  int  `json:"remaining_day"`
	RemainingWeek int  `json:"remaining_week"`
}

type EngagementBudgetRepo interface {
	// GetOrInit fetches the ledger row, creating it with the given limits if
	// absent. First writer wins on the unique user_id index.
	GetOrInit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limits types.BudgetLimits) (*types.EngagementBudget, error)
	// Consume atomically takes cost units from both the daily and weekly pool
	// of a channel after the lazy boundary reset. Rejected wholesale if either
	// pool would overrun.
	Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ch types.Channel, cost int, now time.Time, loc *time.Location) (*ConsumeResult, error)
	// CheckRemaining applies the lazy reset and reads the balance without
	// consuming anything.
	CheckRemaining(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ch types.Channel, now time.Time, loc *time.Location) (*ConsumeResult, error)
	ApplyLimits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limits types.BudgetLimits) error
	Zero(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type engagementBudgetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementBudgetRepo(db *gorm.DB, baseLog *logger.Logger) EngagementBudgetRepo {
	return &engagementBudgetRepo{
		db:  db,
		log: baseLog.With("repo", "EngagementBudgetRepo"),
	}
}

func (r *engagementBudgetRepo) GetOrInit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limits types.BudgetLimits) (*types.EngagementBudget, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("budget: missing user id")
	}
	now := time.Now().UTC()
	row := &types.EngagementBudget{
		ID:             uuid.New(),
		UserID:         userID,
		LimitInAppDay:  limits.InAppDay,
		LimitInAppWeek: limits.InAppWeek,
		LimitPushDay:   limits.PushDay,
		LimitPushWeek:  limits.PushWeek,
		LastUpdatedAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	var current types.EngagementBudget
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&current).Error; err != nil {
		return nil, err
	}
	if current.ID == uuid.Nil {
		return nil, fmt.Errorf("budget row missing after init for user %s", userID)
	}
	return &current, nil
}

// columns resolves the used/limit column names for a channel. Channel values
// are validated at the service boundary; this only ever sees the two enums.
func columns(ch types.Channel) (usedDay, usedWeek, limitDay, limitWeek string) {
	if ch == types.ChannelPush {
		return "used_push_day", "used_push_week", "limit_push_day", "limit_push_week"
	}
	return "used_in_app_day", "used_in_app_week", "limit_in_app_day", "limit_in_app_week"
}

// resetAttempts bounds the re-read loop when a boundary reset loses a race.
// A retry only happens when another writer moved last_updated_at between our
// snapshot and our guarded update, which settles within one round.
const resetAttempts = 3

func (r *engagementBudgetRepo) get(ctx context.Context, transaction *gorm.DB, userID uuid.UUID) (*types.EngagementBudget, error) {
	var row types.EngagementBudget
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, fmt.Errorf("budget row missing for user %s", userID)
	}
	return &row, nil
}

// applyLazyReset zeroes stale counters before an operation proceeds. The
// decision comes from timewindow.ResetElapsed so read and write paths share
// one boundary rule. The update is guarded by the snapshot's last_updated_at:
// if another writer moved the row since the snapshot was read, zero rows
// match and the caller must re-read instead of stomping units that writer
// just spent. Returns whether the snapshot is still current.
func (r *engagementBudgetRepo) applyLazyReset(ctx context.Context, transaction *gorm.DB, row *types.EngagementBudget, now time.Time, loc *time.Location) (bool, error) {
	reset := timewindow.ResetElapsed(row.LastUpdatedAt, now, loc)
	if !reset.Daily && !reset.Weekly {
		return true, nil
	}
	updates := map[string]any{
		"last_updated_at": now.UTC(),
		"updated_at":      now.UTC(),
	}
	if reset.Daily {
		updates["used_in_app_day"] = 0
		updates["used_push_day"] = 0
	}
	if reset.Weekly {
		updates["used_in_app_week"] = 0
		updates["used_push_week"] = 0
	}
	res := transaction.WithContext(ctx).
		Model(&types.EngagementBudget{}).
		Where("user_id = ? AND last_updated_at = ?", row.UserID, row.LastUpdatedAt).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if reset.Daily {
		row.UsedInAppDay, row.UsedPushDay = 0, 0
	}
	if reset.Weekly {
		row.UsedInAppWeek, row.UsedPushWeek = 0, 0
	}
	row.LastUpdatedAt = now.UTC()
	return true, nil
}

func (r *engagementBudgetRepo) Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ch types.Channel, cost int, now time.Time, loc *time.Location) (*ConsumeResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if cost < 0 {
		return nil, fmt.Errorf("budget: negative cost %d", cost)
	}

	for attempt := 0; attempt < resetAttempts; attempt++ {
		row, err := r.get(ctx, transaction, userID)
		if err != nil {
			return nil, err
		}
		ok, err := r.applyLazyReset(ctx, transaction, row, now, loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		return r.consumeCurrent(ctx, transaction, userID, ch, cost, now)
	}
	return nil, fmt.Errorf("budget reset contention for user %s", userID)
}

func (r *engagementBudgetRepo) consumeCurrent(ctx context.Context, transaction *gorm.DB, userID uuid.UUID, ch types.Channel, cost int, now time.Time) (*ConsumeResult, error) {
	usedDay, usedWeek, limitDay, limitWeek := columns(ch)

	// Single conditional update keyed on the current counters: the check and
	// the increment are one statement, so concurrent consumes for the same
	// user serialize on the row and at most limit/cost of them can win.
	res := transaction.WithContext(ctx).
		Model(&types.EngagementBudget{}).
		Where(fmt.Sprintf("user_id = ? AND %s + ? <= %s AND %s + ? <= %s", usedDay, limitDay, usedWeek, limitWeek),
			userID, cost, cost).
		Updates(map[string]any{
			usedDay:           gorm.Expr(usedDay+" + ?", cost),
			usedWeek:          gorm.Expr(usedWeek+" + ?", cost),
			"last_updated_at": now.UTC(),
			"updated_at":      now.UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	accepted := res.RowsAffected > 0
	var after types.EngagementBudget
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&after).Error; err != nil {
		return nil, err
	}
	out := &ConsumeResult{
		Accepted:      accepted,
		UsedDay:       after.Used(ch, types.ScopeDay),
		UsedWeek:      after.Used(ch, types.ScopeWeek),
		RemainingDay:  after.Limit(ch, types.ScopeDay) - after.Used(ch, types.ScopeDay),
		RemainingWeek: after.Limit(ch, types.ScopeWeek) - after.Used(ch, types.ScopeWeek),
	}
	if !accepted {
		r.log.Debug("budget consume rejected",
			"user_id", userID, "channel", ch, "cost", cost,
			"remaining_day", out.RemainingDay, "remaining_week", out.RemainingWeek)
	}
	return out, nil
}

func (r *engagementBudgetRepo) CheckRemaining(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ch types.Channel, now time.Time, loc *time.Location) (*ConsumeResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	for attempt := 0; attempt < resetAttempts; attempt++ {
		row, err := r.get(ctx, transaction, userID)
		if err != nil {
			return nil, err
		}
		ok, err := r.applyLazyReset(ctx, transaction, row, now, loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		return &ConsumeResult{
			Accepted:      true,
			UsedDay:       row.Used(ch, types.ScopeDay),
			UsedWeek:      row.Used(ch, types.ScopeWeek),
			RemainingDay:  row.Limit(ch, types.ScopeDay) - row.Used(ch, types.ScopeDay),
			RemainingWeek: row.Limit(ch, types.ScopeWeek) - row.Used(ch, types.ScopeWeek),
		}, nil
	}
	return nil, fmt.Errorf("budget reset contention for user %s", userID)
}

func (r *engagementBudgetRepo) ApplyLimits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limits types.BudgetLimits) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.EngagementBudget{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"limit_in_app_day":  limits.InAppDay,
			"limit_in_app_week": limits.InAppWeek,
			"limit_push_day":    limits.PushDay,
			"limit_push_week":   limits.PushWeek,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *engagementBudgetRepo) Zero(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.EngagementBudget{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"used_in_app_day":  0,
			"used_in_app_week": 0,
			"used_push_day":    0,
			"used_push_week":   0,
			"last_updated_at":  now,
			"updated_at":       now,
		}).Error
}
