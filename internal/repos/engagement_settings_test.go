package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/repos/testutil"
	"github.com/qingtalk/guanzhao/internal/types"
)

func TestEngagementSettingsRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEngagementSettingsRepo(db, testutil.Logger(t))

	userID := uuid.New()

	if row, err := repo.Get(ctx, tx, userID); err != nil || row != nil {
		t.Fatalf("Get before create: row=%v err=%v", row, err)
	}

	seed := types.DefaultSettings(userID)
	if err := repo.Create(ctx, tx, seed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Lazy creation races resolve to first writer wins.
	dup := types.DefaultSettings(userID)
	dup.FrequencyLevel = types.FrequencyEager
	if err := repo.Create(ctx, tx, dup); err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	row, err := repo.Get(ctx, tx, userID)
	if err != nil || row == nil {
		t.Fatalf("Get after create: row=%v err=%v", row, err)
	}
	if row.FrequencyLevel != types.FrequencyModerate {
		t.Fatalf("duplicate create overwrote row: level=%s", row.FrequencyLevel)
	}
	if !row.Enabled || row.QuietHoursStart != types.DefaultQuietHoursStart {
		t.Fatalf("defaults not persisted: %+v", row)
	}

	enabled := false
	style := "warm"
	snooze := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	if err := repo.ApplyPatch(ctx, tx, userID, SettingsPatch{
		Enabled:      &enabled,
		Style:        &style,
		SnoozedUntil: &snooze,
	}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	row, err = repo.Get(ctx, tx, userID)
	if err != nil || row == nil {
		t.Fatalf("Get after patch: %v", err)
	}
	if row.Enabled || row.Style != "warm" || row.SnoozedUntil == nil {
		t.Fatalf("patch not applied: %+v", row)
	}

	if err := repo.ApplyPatch(ctx, tx, userID, SettingsPatch{ClearSnooze: true}); err != nil {
		t.Fatalf("ApplyPatch clear snooze: %v", err)
	}
	row, _ = repo.Get(ctx, tx, userID)
	if row.SnoozedUntil != nil {
		t.Fatalf("snooze not cleared: %+v", row.SnoozedUntil)
	}

	changed, err := repo.Downgrade(ctx, tx, userID, types.FrequencyModerate, types.FrequencySparing)
	if err != nil || !changed {
		t.Fatalf("Downgrade: changed=%v err=%v", changed, err)
	}
	// A stale downgrade (wrong expected rung) must be a no-op.
	changed, err = repo.Downgrade(ctx, tx, userID, types.FrequencyModerate, types.FrequencySilent)
	if err != nil || changed {
		t.Fatalf("stale Downgrade applied: changed=%v err=%v", changed, err)
	}
	row, _ = repo.Get(ctx, tx, userID)
	if row.FrequencyLevel != types.FrequencySparing {
		t.Fatalf("frequency after downgrades: %s", row.FrequencyLevel)
	}

	if err := repo.Delete(ctx, tx, userID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if row, err := repo.Get(ctx, tx, userID); err != nil || row != nil {
		t.Fatalf("Get after delete: row=%v err=%v", row, err)
	}
}

// A row seeded with Enabled=false must read back disabled. Zero-value bools
// are easy to lose on insert when a column default says otherwise.
func TestEngagementSettingsCreatePersistsDisabled(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEngagementSettingsRepo(db, testutil.Logger(t))

	userID := uuid.New()
	seed := types.DefaultSettings(userID)
	seed.Enabled = false
	if err := repo.Create(ctx, tx, seed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	row, err := repo.Get(ctx, tx, userID)
	if err != nil || row == nil {
		t.Fatalf("Get: row=%v err=%v", row, err)
	}
	if row.Enabled {
		t.Fatalf("Enabled=false dropped on insert: %+v", row)
	}
}
