package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/repos/testutil"
	"github.com/qingtalk/guanzhao/internal/types"
)

func TestTriggerCooldownRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewTriggerCooldownRepo(db, testutil.Logger(t))

	userID := uuid.New()

	if row, err := repo.Get(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp); err != nil || row != nil {
		t.Fatalf("Get missing: row=%v err=%v", row, err)
	}

	until := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	if err := repo.Upsert(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp, until); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	row, err := repo.Get(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp)
	if err != nil || row == nil {
		t.Fatalf("Get: row=%v err=%v", row, err)
	}
	if !row.CooldownUntil.Equal(until) {
		t.Fatalf("cooldown_until=%v, want %v", row.CooldownUntil, until)
	}

	// A second firing overwrites rather than appends.
	later := until.Add(48 * time.Hour)
	if err := repo.Upsert(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp, later); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}
	var count int64
	if err := tx.WithContext(ctx).Model(&types.TriggerCooldown{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one live record per key, got %d", count)
	}
	row, _ = repo.Get(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp)
	if !row.CooldownUntil.Equal(later) {
		t.Fatalf("overwrite lost: %v", row.CooldownUntil)
	}

	// Same trigger on the other channel is an independent key.
	if err := repo.Upsert(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelPush, until); err != nil {
		t.Fatalf("Upsert other channel: %v", err)
	}
	if err := tx.WithContext(ctx).Model(&types.TriggerCooldown{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("channel keys collapsed: %d rows", count)
	}
}
