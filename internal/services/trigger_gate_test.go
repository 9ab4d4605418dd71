package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qingtalk/guanzhao/internal/apierr"
	"github.com/qingtalk/guanzhao/internal/repos"
	"github.com/qingtalk/guanzhao/internal/repos/testutil"
	"github.com/qingtalk/guanzhao/internal/types"
)

// Tuesday noon UTC, outside the default quiet hours.
var gateNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newGateFixture(t *testing.T) (*triggerGateService, repos.EngagementSettingsRepo, repos.TriggerCooldownRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	settingsRepo := repos.NewEngagementSettingsRepo(db, log)
	cooldownRepo := repos.NewTriggerCooldownRepo(db, log)
	svc := NewTriggerGateService(db, log, NewSettingsReader(db, settingsRepo), cooldownRepo).(*triggerGateService)
	svc.now = func() time.Time { return gateNow }
	return svc, settingsRepo, cooldownRepo
}

func seedSettings(t *testing.T, repo repos.EngagementSettingsRepo, mutate func(*types.EngagementSettings)) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	row := types.DefaultSettings(userID)
	if mutate != nil {
		mutate(row)
	}
	if err := repo.Create(context.Background(), nil, row); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	return userID
}

func TestEvaluateAllowedCarriesSettings(t *testing.T) {
	svc, settingsRepo, _ := newGateFixture(t)
	userID := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.Style = "warm"
	})

	d, err := svc.Evaluate(context.Background(), userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allowed, got reason %q", d.Reason)
	}
	if d.Settings == nil || d.Settings.Style != "warm" {
		t.Fatalf("expected settings to ride along, got %+v", d.Settings)
	}
}

func TestEvaluateSettingsNotFound(t *testing.T) {
	svc, _, _ := newGateFixture(t)

	d, err := svc.Evaluate(context.Background(), uuid.New(), "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenySettingsNotFound {
		t.Fatalf("expected settings_not_found, got %+v", d)
	}
}

func TestEvaluateDisabledBeatsEverything(t *testing.T) {
	svc, settingsRepo, cooldownRepo := newGateFixture(t)
	snooze := gateNow.Add(time.Hour)
	userID := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.Enabled = false
		s.SnoozedUntil = &snooze
	})
	if err := cooldownRepo.Upsert(context.Background(), nil, userID, "daily_checkin", types.ChannelInApp, gateNow.Add(time.Hour)); err != nil {
		t.Fatalf("seed cooldown: %v", err)
	}

	d, err := svc.Evaluate(context.Background(), userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenyDisabled {
		t.Fatalf("expected disabled to win, got %+v", d)
	}
}

func TestEvaluateSnoozeBoundary(t *testing.T) {
	svc, settingsRepo, _ := newGateFixture(t)
	ctx := context.Background()

	future := gateNow.Add(time.Minute)
	snoozed := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.SnoozedUntil = &future
	})
	d, err := svc.Evaluate(ctx, snoozed, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenySnoozed {
		t.Fatalf("expected snoozed, got %+v", d)
	}
	if d.SnoozedUntil == nil || !d.SnoozedUntil.Equal(future) {
		t.Fatalf("expected snoozed_until %v, got %v", future, d.SnoozedUntil)
	}

	// Expiry is exact: a snooze ending right now no longer blocks.
	exact := gateNow
	expired := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.SnoozedUntil = &exact
	})
	d, err = svc.Evaluate(ctx, expired, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("snooze ending at now should not block, got %+v", d)
	}
}

func TestEvaluatePushDisabledOnlyBlocksPush(t *testing.T) {
	svc, settingsRepo, _ := newGateFixture(t)
	ctx := context.Background()
	userID := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.PushDisabled = true
	})

	d, err := svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelPush)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenyPushDisabled {
		t.Fatalf("expected push_disabled, got %+v", d)
	}

	d, err = svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("in_app should pass a push-only block, got %+v", d)
	}
}

func TestEvaluateQuietHoursOnlyBlockPush(t *testing.T) {
	svc, settingsRepo, _ := newGateFixture(t)
	ctx := context.Background()
	userID := seedSettings(t, settingsRepo, nil)

	// 02:00 UTC sits inside the default 23:30-08:00 window.
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC) }

	d, err := svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelPush)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenyInDndWindow {
		t.Fatalf("expected in_dnd_window, got %+v", d)
	}

	d, err = svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("quiet hours must not block in_app, got %+v", d)
	}
}

func TestEvaluateQuietHoursUseUserTimezone(t *testing.T) {
	svc, settingsRepo, _ := newGateFixture(t)
	userID := seedSettings(t, settingsRepo, func(s *types.EngagementSettings) {
		s.Timezone = "Asia/Shanghai"
	})

	// 18:00 UTC is 02:00 the next day in Shanghai.
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC) }

	d, err := svc.Evaluate(context.Background(), userID, "daily_checkin", types.ChannelPush)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenyInDndWindow {
		t.Fatalf("expected local-time quiet hours to block, got %+v", d)
	}
}

func TestEvaluateCooldown(t *testing.T) {
	svc, settingsRepo, cooldownRepo := newGateFixture(t)
	ctx := context.Background()
	userID := seedSettings(t, settingsRepo, nil)

	until := gateNow.Add(6 * time.Hour)
	if err := cooldownRepo.Upsert(ctx, nil, userID, "daily_checkin", types.ChannelInApp, until); err != nil {
		t.Fatalf("seed cooldown: %v", err)
	}

	d, err := svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != DenyOnCooldown {
		t.Fatalf("expected on_cooldown, got %+v", d)
	}
	if d.CooldownUntil == nil || !d.CooldownUntil.Equal(until) {
		t.Fatalf("expected cooldown_until %v, got %v", until, d.CooldownUntil)
	}

	// A different trigger, and the same trigger on the other channel, stay
	// open.
	d, err = svc.Evaluate(ctx, userID, "nightly_wrapup", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("cooldown must be scoped to its trigger, got %+v", d)
	}
	d, err = svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelPush)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("cooldown must be scoped to its channel, got %+v", d)
	}

	// Expired cooldowns are ignored where they lie.
	if err := cooldownRepo.Upsert(ctx, nil, userID, "daily_checkin", types.ChannelInApp, gateNow.Add(-time.Minute)); err != nil {
		t.Fatalf("rewind cooldown: %v", err)
	}
	d, err = svc.Evaluate(ctx, userID, "daily_checkin", types.ChannelInApp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expired cooldown should not block, got %+v", d)
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	svc, _, _ := newGateFixture(t)
	ctx := context.Background()

	if _, err := svc.Evaluate(ctx, uuid.Nil, "daily_checkin", types.ChannelInApp); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil user, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, uuid.New(), "", types.ChannelInApp); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty trigger, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, uuid.New(), "daily_checkin", types.Channel("sms")); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown channel, got %v", err)
	}
}
