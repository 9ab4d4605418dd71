package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/apierr"
	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/repos"
	"github.com/qingtalk/guanzhao/internal/timewindow"
	"github.com/qingtalk/guanzhao/internal/types"
)

// DenyReason enumerates the normal, expected outcomes of Evaluate. They are
// values, not errors; callers and operators see them verbatim.
type DenyReason string

const (
	DenySettingsNotFound DenyReason = "settings_not_found"
	DenyDisabled         DenyReason = "disabled"
	DenyPushDisabled     DenyReason = "push_disabled"
	DenySnoozed          DenyReason = "snoozed"
	DenyInDndWindow      DenyReason = "in_dnd_window"
	DenyOnCooldown       DenyReason = "on_cooldown"
)

// Decision is the outcome of admission control. On Allowed the resolved
// settings ride along so the caller can pick a template from style and
// frequency level without a second read.
type Decision struct {
	Allowed       bool                      `json:"allowed"`
	Reason        DenyReason                `json:"reason,omitempty"`
	Detail        string                    `json:"detail,omitempty"`
	SnoozedUntil  *time.Time                `json:"snoozed_until,omitempty"`
	CooldownUntil *time.Time                `json:"cooldown_until,omitempty"`
	Settings      *types.EngagementSettings `json:"settings,omitempty"`
}

func deny(reason DenyReason, detail string) *Decision {
	return &Decision{Reason: reason, Detail: detail}
}

type TriggerGateService interface {
	Evaluate(ctx context.Context, userID uuid.UUID, triggerID string, ch types.Channel) (*Decision, error)
}

type triggerGateService struct {
	db       *gorm.DB
	log      *logger.Logger
	settings SettingsReader
	cooldown repos.TriggerCooldownRepo
	now      func() time.Time
}

func NewTriggerGateService(db *gorm.DB, baseLog *logger.Logger, settings SettingsReader, cooldown repos.TriggerCooldownRepo) TriggerGateService {
	return &triggerGateService{
		db:       db,
		log:      baseLog.With("service", "TriggerGateService"),
		settings: settings,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Evaluate runs the admission checks in fixed order and short-circuits at
// the first failure: settings presence, enabled, snooze, DND (push only),
// cooldown. Budget is deliberately not checked here; the authoritative
// consume happens atomically at commit.
func (s *triggerGateService) Evaluate(ctx context.Context, userID uuid.UUID, triggerID string, ch types.Channel) (*Decision, error) {
	if userID == uuid.Nil || triggerID == "" {
		return nil, fmt.Errorf("evaluate: %w", apierr.ErrInvalidArgument)
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("evaluate: unknown channel %q: %w", ch, apierr.ErrInvalidArgument)
	}
	now := s.now()

	settings, err := s.settings.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		// Defaults are provisioned on user creation; a missing row here is a
		// configuration problem, not a normal denial.
		s.log.Warn("settings record missing at evaluate", "user_id", userID, "trigger_id", triggerID)
		return deny(DenySettingsNotFound, "no engagement settings record for user"), nil
	}

	if !settings.Enabled {
		return deny(DenyDisabled, ""), nil
	}

	if settings.SnoozedUntil != nil && now.Before(*settings.SnoozedUntil) {
		d := deny(DenySnoozed, fmt.Sprintf("snoozed until %s", settings.SnoozedUntil.Format(time.RFC3339)))
		until := *settings.SnoozedUntil
		d.SnoozedUntil = &until
		return d, nil
	}

	if ch == types.ChannelPush {
		if settings.PushDisabled {
			return deny(DenyPushDisabled, "push channel disabled for user"), nil
		}
		local := now.In(settings.Location())
		start, end := settings.QuietWindow()
		if timewindow.InRange(timewindow.MinuteOfDay(local), start, end) {
			return deny(DenyInDndWindow, fmt.Sprintf("quiet hours %s-%s, local time %s",
				timewindow.FormatClock(start), timewindow.FormatClock(end), local.Format("15:04"))), nil
		}
	}

	cd, err := s.cooldown.Get(ctx, nil, userID, triggerID, ch)
	if err != nil {
		return nil, err
	}
	if cd != nil && now.Before(cd.CooldownUntil) {
		d := deny(DenyOnCooldown, fmt.Sprintf("cooldown until %s", cd.CooldownUntil.Format(time.RFC3339)))
		until := cd.CooldownUntil
		d.CooldownUntil = &until
		return d, nil
	}

	return &Decision{Allowed: true, Settings: settings}, nil
}
