package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/apierr"
	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/policy"
	"github.com/qingtalk/guanzhao/internal/repos"
	"github.com/qingtalk/guanzhao/internal/timewindow"
	"github.com/qingtalk/guanzhao/internal/types"
)

// CommitResult reports the outcome of the fire path. HistoryID is set only
// when the commit was accepted.
type CommitResult struct {
	Accepted  bool       `json:"accepted"`
	HistoryID *uuid.UUID `json:"history_id,omitempty"`
}

// SettingsUpdate is the typed partial update accepted from the settings
// surface. Clock fields take "HH:MM" strings.
type SettingsUpdate struct {
	Enabled         OptionalBool   `json:"enabled"`
	FrequencyLevel  OptionalString `json:"frequency_level"`
	Style           OptionalString `json:"style"`
	QuietHoursStart OptionalString `json:"quiet_hours_start"`
	QuietHoursEnd   OptionalString `json:"quiet_hours_end"`
	SnoozedUntil    OptionalTime   `json:"snoozed_until"`
	PushDisabled    OptionalBool   `json:"push_disabled"`
	Timezone        OptionalString `json:"timezone"`
}

type EngagementService interface {
	// CommitFiring consumes budget, appends the history entry, and arms the
	// cooldown as one unit. A rejected consume leaves no trace.
	CommitFiring(ctx context.Context, userID uuid.UUID, triggerID string, ch types.Channel, templateID string, budgetCost, cooldownDays int) (*CommitResult, error)
	RecordFeedback(ctx context.Context, userID, historyID uuid.UUID, tag string) error
	GetSettings(ctx context.Context, userID uuid.UUID) (*types.EngagementSettings, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, update SettingsUpdate) (*types.EngagementSettings, error)
	ResetSettings(ctx context.Context, userID uuid.UUID) error
	CheckRemaining(ctx context.Context, userID uuid.UUID, ch types.Channel) (*repos.ConsumeResult, error)
	Snooze(ctx context.Context, userID uuid.UUID, d time.Duration) error
	Disable(ctx context.Context, userID uuid.UUID) error
	DowngradeToMinimal(ctx context.Context, userID uuid.UUID) error
}

type engagementService struct {
	db          *gorm.DB
	log         *logger.Logger
	pol         *policy.Policy
	settings    repos.EngagementSettingsRepo
	budgets     repos.EngagementBudgetRepo
	cooldowns   repos.TriggerCooldownRepo
	history     repos.TriggerHistoryRepo
	invalidator SettingsInvalidator
	now         func() time.Time
}

// NewEngagementService wires the fire/feedback/settings paths. invalidator
// may be nil when no settings cache is configured.
func NewEngagementService(
	db *gorm.DB,
	baseLog *logger.Logger,
	pol *policy.Policy,
	settings repos.EngagementSettingsRepo,
	budgets repos.EngagementBudgetRepo,
	cooldowns repos.TriggerCooldownRepo,
	history repos.TriggerHistoryRepo,
	invalidator SettingsInvalidator,
) EngagementService {
	return &engagementService{
		db:          db,
		log:         baseLog.With("service", "EngagementService"),
		pol:         pol,
		settings:    settings,
		budgets:     budgets,
		cooldowns:   cooldowns,
		history:     history,
		invalidator: invalidator,
		now:         time.Now,
	}
}

func (s *engagementService) CommitFiring(ctx context.Context, userID uuid.UUID, triggerID string, ch types.Channel, templateID string, budgetCost, cooldownDays int) (*CommitResult, error) {
	if userID == uuid.Nil || triggerID == "" || templateID == "" {
		return nil, fmt.Errorf("commit firing: %w", apierr.ErrInvalidArgument)
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("commit firing: unknown channel %q: %w", ch, apierr.ErrInvalidArgument)
	}
	if budgetCost < 0 || cooldownDays < 0 {
		return nil, fmt.Errorf("commit firing: negative cost or cooldown: %w", apierr.ErrInvalidArgument)
	}
	if budgetCost == 0 {
		if spec, ok := s.pol.SpecFor(triggerID); ok {
			budgetCost = spec.BudgetCost
		} else {
			budgetCost = 1
		}
	}
	now := s.now()

	var result *CommitResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		settings, err := s.settings.Get(ctx, tx, userID)
		if err != nil {
			return err
		}
		if settings == nil {
			return fmt.Errorf("no engagement settings for user %s: %w", userID, apierr.ErrConfiguration)
		}
		loc := settings.Location()
		limits := s.pol.LimitsFor(settings.FrequencyLevel)
		if _, err := s.budgets.GetOrInit(ctx, tx, userID, limits); err != nil {
			return err
		}
		consume, err := s.budgets.Consume(ctx, tx, userID, ch, budgetCost, now, loc)
		if err != nil {
			return err
		}
		if !consume.Accepted {
			// Rejected wholesale: roll the transaction back so no history or
			// cooldown survives, then surface BudgetExceeded.
			return fmt.Errorf("%s budget for user %s: %w", ch, userID, apierr.ErrBudgetExceeded)
		}

		data, _ := json.Marshal(map[string]any{"budget_cost": budgetCost, "cooldown_days": cooldownDays})
		entry, err := s.history.Append(ctx, tx, &types.TriggerHistory{
			UserID:     userID,
			TriggerID:  triggerID,
			Channel:    ch,
			TemplateID: templateID,
			Status:     types.HistoryStatusShown,
			Data:       datatypes.JSON(data),
			FiredAt:    now.UTC(),
		})
		if err != nil {
			return err
		}
		if cooldownDays > 0 {
			until := now.Add(time.Duration(cooldownDays) * 24 * time.Hour)
			if err := s.cooldowns.Upsert(ctx, tx, userID, triggerID, ch, until); err != nil {
				return err
			}
		}
		id := entry.ID
		result = &CommitResult{Accepted: true, HistoryID: &id}
		return nil
	})
	if err != nil {
		if errors.Is(err, apierr.ErrBudgetExceeded) {
			return &CommitResult{Accepted: false}, err
		}
		return nil, err
	}
	s.log.Info("trigger fired",
		"user_id", userID, "trigger_id", triggerID, "channel", ch,
		"template_id", templateID, "history_id", result.HistoryID)
	return result, nil
}

func (s *engagementService) RecordFeedback(ctx context.Context, userID, historyID uuid.UUID, tag string) error {
	if userID == uuid.Nil || historyID == uuid.Nil {
		return fmt.Errorf("record feedback: %w", apierr.ErrInvalidArgument)
	}
	switch tag {
	case types.FeedbackTooFrequent, types.FeedbackHelpful, types.FeedbackDismissed:
	default:
		return fmt.Errorf("unknown feedback tag %q: %w", tag, apierr.ErrInvalidArgument)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.history.Annotate(ctx, tx, historyID, userID, tag)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("history entry %s: %w", historyID, apierr.ErrNotFound)
		}
		if tag != types.FeedbackTooFrequent {
			return nil
		}
		return s.stepLadderDown(ctx, tx, userID)
	})
	if err != nil {
		return err
	}
	if tag == types.FeedbackTooFrequent {
		s.invalidate(ctx, userID)
	}
	return nil
}

// stepLadderDown moves the user one rung down the frequency ladder and
// re-seeds budget limits for the new rung. Already-silent users stay put.
func (s *engagementService) stepLadderDown(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	settings, err := s.ensureSettingsRow(ctx, tx, userID)
	if err != nil {
		return err
	}
	current := settings.FrequencyLevel
	next := current.Downgrade()
	if next == current {
		return nil
	}
	changed, err := s.settings.Downgrade(ctx, tx, userID, current, next)
	if err != nil {
		return err
	}
	if !changed {
		// Lost a race with another downgrade; that one already re-seeded.
		return nil
	}
	limits := s.pol.LimitsFor(next)
	if _, err := s.budgets.GetOrInit(ctx, tx, userID, limits); err != nil {
		return err
	}
	if err := s.budgets.ApplyLimits(ctx, tx, userID, limits); err != nil {
		return err
	}
	s.log.Info("frequency level downgraded", "user_id", userID, "from", current, "to", next)
	return nil
}

func (s *engagementService) GetSettings(ctx context.Context, userID uuid.UUID) (*types.EngagementSettings, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("get settings: %w", apierr.ErrInvalidArgument)
	}
	row, err := s.settings.Get(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		// Absence means defaults; the row itself stays unwritten until the
		// first mutation.
		return types.DefaultSettings(userID), nil
	}
	return row, nil
}

func (s *engagementService) UpdateSettings(ctx context.Context, userID uuid.UUID, update SettingsUpdate) (*types.EngagementSettings, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("update settings: %w", apierr.ErrInvalidArgument)
	}
	patch, err := s.patchFromUpdate(update)
	if err != nil {
		return nil, err
	}

	var out *types.EngagementSettings
	err = s.db.Transaction(func(tx *gorm.DB) error {
		before, err := s.ensureSettingsRow(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.settings.ApplyPatch(ctx, tx, userID, patch); err != nil {
			return err
		}
		after, err := s.settings.Get(ctx, tx, userID)
		if err != nil {
			return err
		}
		if after == nil {
			return fmt.Errorf("settings row vanished for user %s: %w", userID, apierr.ErrConfiguration)
		}
		if after.FrequencyLevel != before.FrequencyLevel {
			limits := s.pol.LimitsFor(after.FrequencyLevel)
			if _, err := s.budgets.GetOrInit(ctx, tx, userID, limits); err != nil {
				return err
			}
			if err := s.budgets.ApplyLimits(ctx, tx, userID, limits); err != nil {
				return err
			}
		}
		out = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return out, nil
}

func (s *engagementService) patchFromUpdate(update SettingsUpdate) (repos.SettingsPatch, error) {
	var patch repos.SettingsPatch
	if update.Enabled.Set && update.Enabled.Value != nil {
		patch.Enabled = update.Enabled.Value
	}
	if update.FrequencyLevel.Set && update.FrequencyLevel.Value != nil {
		level := types.FrequencyLevel(*update.FrequencyLevel.Value)
		if !level.Valid() {
			return patch, fmt.Errorf("unknown frequency level %q: %w", level, apierr.ErrInvalidArgument)
		}
		patch.FrequencyLevel = &level
	}
	if update.Style.Set {
		style := ""
		if update.Style.Value != nil {
			style = *update.Style.Value
		}
		patch.Style = &style
	}
	if update.QuietHoursStart.Set && update.QuietHoursStart.Value != nil {
		m, err := timewindow.ParseClock(*update.QuietHoursStart.Value)
		if err != nil {
			return patch, fmt.Errorf("%v: %w", err, apierr.ErrInvalidArgument)
		}
		patch.QuietHoursStart = &m
	}
	if update.QuietHoursEnd.Set && update.QuietHoursEnd.Value != nil {
		m, err := timewindow.ParseClock(*update.QuietHoursEnd.Value)
		if err != nil {
			return patch, fmt.Errorf("%v: %w", err, apierr.ErrInvalidArgument)
		}
		patch.QuietHoursEnd = &m
	}
	if update.SnoozedUntil.Set {
		if update.SnoozedUntil.Value == nil {
			patch.ClearSnooze = true
		} else {
			patch.SnoozedUntil = update.SnoozedUntil.Value
		}
	}
	if update.PushDisabled.Set && update.PushDisabled.Value != nil {
		patch.PushDisabled = update.PushDisabled.Value
	}
	if update.Timezone.Set && update.Timezone.Value != nil {
		tz := *update.Timezone.Value
		if _, err := time.LoadLocation(tz); err != nil {
			return patch, fmt.Errorf("unknown timezone %q: %w", tz, apierr.ErrInvalidArgument)
		}
		patch.Timezone = &tz
	}
	return patch, nil
}

func (s *engagementService) ResetSettings(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("reset settings: %w", apierr.ErrInvalidArgument)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.settings.Delete(ctx, tx, userID); err != nil {
			return err
		}
		return s.budgets.Zero(ctx, tx, userID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *engagementService) CheckRemaining(ctx context.Context, userID uuid.UUID, ch types.Channel) (*repos.ConsumeResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("check remaining: %w", apierr.ErrInvalidArgument)
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("check remaining: unknown channel %q: %w", ch, apierr.ErrInvalidArgument)
	}
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := s.pol.LimitsFor(settings.FrequencyLevel)
	if _, err := s.budgets.GetOrInit(ctx, nil, userID, limits); err != nil {
		return nil, err
	}
	return s.budgets.CheckRemaining(ctx, nil, userID, ch, s.now(), settings.Location())
}

func (s *engagementService) Snooze(ctx context.Context, userID uuid.UUID, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("snooze duration must be positive: %w", apierr.ErrInvalidArgument)
	}
	until := s.now().Add(d).UTC()
	return s.applyActionPatch(ctx, userID, repos.SettingsPatch{SnoozedUntil: &until})
}

func (s *engagementService) Disable(ctx context.Context, userID uuid.UUID) error {
	enabled := false
	return s.applyActionPatch(ctx, userID, repos.SettingsPatch{Enabled: &enabled})
}

// DowngradeToMinimal drops the user to the silent rung and shuts off push
// specifically, without touching the global enabled flag.
func (s *engagementService) DowngradeToMinimal(ctx context.Context, userID uuid.UUID) error {
	silent := types.FrequencySilent
	pushOff := true
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.ensureSettingsRow(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.settings.ApplyPatch(ctx, tx, userID, repos.SettingsPatch{
			FrequencyLevel: &silent,
			PushDisabled:   &pushOff,
		}); err != nil {
			return err
		}
		limits := s.pol.LimitsFor(silent)
		if _, err := s.budgets.GetOrInit(ctx, tx, userID, limits); err != nil {
			return err
		}
		return s.budgets.ApplyLimits(ctx, tx, userID, limits)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *engagementService) applyActionPatch(ctx context.Context, userID uuid.UUID, patch repos.SettingsPatch) error {
	if userID == uuid.Nil {
		return fmt.Errorf("engagement action: %w", apierr.ErrInvalidArgument)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.ensureSettingsRow(ctx, tx, userID); err != nil {
			return err
		}
		return s.settings.ApplyPatch(ctx, tx, userID, patch)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ensureSettingsRow creates the defaults row lazily on first write and
// returns the current row.
func (s *engagementService) ensureSettingsRow(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.EngagementSettings, error) {
	row, err := s.settings.Get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	if err := s.settings.Create(ctx, tx, types.DefaultSettings(userID)); err != nil {
		return nil, err
	}
	row, err = s.settings.Get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("settings row missing after create for user %s: %w", userID, apierr.ErrConfiguration)
	}
	return row, nil
}

func (s *engagementService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, userID)
	}
}
