package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/repos/testutil"
	"github.com/qingtalk/guanzhao/internal/types"
)

func TestTriggerHistoryRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewTriggerHistoryRepo(db, testutil.Logger(t))

	userID := uuid.New()
	base := time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC)

	first, err := repo.Append(ctx, tx, &types.TriggerHistory{
		UserID:     userID,
		TriggerID:  types.TriggerDailyCheckin,
		Channel:    types.ChannelInApp,
		TemplateID: "checkin_morning_v2",
		FiredAt:    base,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.Status != types.HistoryStatusShown {
		t.Fatalf("default status: %q", first.Status)
	}

	if _, err := repo.Append(ctx, tx, &types.TriggerHistory{
		UserID:     userID,
		TriggerID:  types.TriggerDailyCheckin,
		Channel:    types.ChannelPush,
		TemplateID: "checkin_push_v1",
		FiredAt:    base.Add(2 * time.Hour),
	}); err != nil {
		t.Fatalf("Append push: %v", err)
	}

	dayStart := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	count, err := repo.CountFiredBetween(ctx, tx, userID, types.TriggerDailyCheckin, types.ChannelInApp, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("CountFiredBetween: %v", err)
	}
	if count != 1 {
		t.Fatalf("channel filter broken: count=%d", count)
	}

	last, err := repo.LastFiredAt(ctx, tx, userID, types.TriggerDailyCheckin)
	if err != nil || last == nil {
		t.Fatalf("LastFiredAt: last=%v err=%v", last, err)
	}
	if !last.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("LastFiredAt=%v, want most recent across channels", last)
	}
	if last, err := repo.LastFiredAt(ctx, tx, userID, types.TriggerNightlyWrapup); err != nil || last != nil {
		t.Fatalf("LastFiredAt never-fired: last=%v err=%v", last, err)
	}

	ok, err := repo.Annotate(ctx, tx, first.ID, userID, types.FeedbackTooFrequent)
	if err != nil || !ok {
		t.Fatalf("Annotate: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(ctx, tx, first.ID)
	if got.Feedback == nil || *got.Feedback != types.FeedbackTooFrequent {
		t.Fatalf("feedback not stored: %+v", got.Feedback)
	}

	// Annotating someone else's entry must not match.
	ok, err = repo.Annotate(ctx, tx, first.ID, uuid.New(), types.FeedbackHelpful)
	if err != nil || ok {
		t.Fatalf("cross-user annotate: ok=%v err=%v", ok, err)
	}
}
