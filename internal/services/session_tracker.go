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

const (
	// A session running at least this long counts as an overload signal.
	overloadSessionDuration = 45 * time.Minute
	// Overload nudges are throttled against the trigger history, not the
	// cooldown store: this is a tighter, session-scoped throttle layered on
	// top of the gate that follows.
	overloadRefireInterval = 30 * time.Minute
)

// CandidateTrigger names a trigger the tracker believes is worth showing,
// with a human-readable reason. It is advisory only; the caller still has to
// pass it through the gate and commit.
type CandidateTrigger struct {
	TriggerID string `json:"trigger_id"`
	Reason    string `json:"reason"`
}

type SessionEventResult struct {
	SessionID     uuid.UUID         `json:"session_id"`
	ShouldTrigger *CandidateTrigger `json:"should_trigger,omitempty"`
}

type SessionTrackerService interface {
	Start(ctx context.Context, userID uuid.UUID, timezone string) (*SessionEventResult, error)
	Continue(ctx context.Context, userID, sessionID uuid.UUID, activityCount int) (*SessionEventResult, error)
	End(ctx context.Context, userID, sessionID uuid.UUID) (*SessionEventResult, error)
}

type sessionTrackerService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions repos.ChatSessionRepo
	history  repos.TriggerHistoryRepo
	now      func() time.Time
}

func NewSessionTrackerService(db *gorm.DB, baseLog *logger.Logger, sessions repos.ChatSessionRepo, history repos.TriggerHistoryRepo) SessionTrackerService {
	return &sessionTrackerService{
		db:       db,
		log:      baseLog.With("service", "SessionTrackerService"),
		sessions: sessions,
		history:  history,
		now:      time.Now,
	}
}

func (s *sessionTrackerService) Start(ctx context.Context, userID uuid.UUID, timezone string) (*SessionEventResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("session start: %w", apierr.ErrInvalidArgument)
	}
	now := s.now()
	tz := timezone
	if tz == "" {
		tz = types.DefaultTimezone
	} else if _, err := time.LoadLocation(tz); err != nil {
		s.log.Warn("unknown timezone on session start, using UTC", "user_id", userID, "timezone", tz)
		tz = types.DefaultTimezone
	}

	row, err := s.sessions.Create(ctx, nil, &types.ChatSession{
		UserID:    userID,
		Timezone:  tz,
		StartedAt: now.UTC(),
	})
	if err != nil {
		return nil, err
	}

	result := &SessionEventResult{SessionID: row.ID}

	loc := row.Location()
	dayStart := timewindow.StartOfDay(now, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Daily check-in fires only on the user's first session of the day,
	// and only if the day has not been greeted already.
	started, err := s.sessions.CountStartedBetween(ctx, nil, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if started == 1 {
		fired, err := s.history.CountFiredBetween(ctx, nil, userID, types.TriggerDailyCheckin, types.ChannelInApp, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		if fired == 0 {
			result.ShouldTrigger = &CandidateTrigger{
				TriggerID: types.TriggerDailyCheckin,
				Reason:    "first session of the day, not yet greeted",
			}
		}
	}
	return result, nil
}

func (s *sessionTrackerService) Continue(ctx context.Context, userID, sessionID uuid.UUID, activityCount int) (*SessionEventResult, error) {
	now := s.now()
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, nil, sess.ID, now.UTC(), activityCount); err != nil {
		return nil, err
	}

	result := &SessionEventResult{SessionID: sess.ID}

	local := now.In(sess.Location())
	lateNight := local.Hour() == 0
	longSession := now.Sub(sess.StartedAt) >= overloadSessionDuration
	if !lateNight && !longSession {
		return result, nil
	}

	last, err := s.history.LastFiredAt(ctx, nil, userID, types.TriggerOverloadProtection)
	if err != nil {
		return nil, err
	}
	if last != nil && now.Sub(*last) < overloadRefireInterval {
		return result, nil
	}

	reason := "session running 45 minutes or more"
	if lateNight {
		reason = "active after midnight"
	}
	result.ShouldTrigger = &CandidateTrigger{
		TriggerID: types.TriggerOverloadProtection,
		Reason:    reason,
	}
	return result, nil
}

func (s *sessionTrackerService) End(ctx context.Context, userID, sessionID uuid.UUID) (*SessionEventResult, error) {
	now := s.now()
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.End(ctx, nil, sess.ID, now.UTC()); err != nil {
		return nil, err
	}

	result := &SessionEventResult{SessionID: sess.ID}

	loc := sess.Location()
	local := now.In(loc)
	if local.Hour() < 20 || local.Hour() >= 23 {
		return result, nil
	}
	dayStart := timewindow.StartOfDay(now, loc)
	fired, err := s.history.CountFiredBetween(ctx, nil, userID, types.TriggerNightlyWrapup, types.ChannelInApp, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if fired == 0 {
		result.ShouldTrigger = &CandidateTrigger{
			TriggerID: types.TriggerNightlyWrapup,
			Reason:    "session ended in the evening, no wrap-up yet today",
		}
	}
	return result, nil
}

func (s *sessionTrackerService) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
	if userID == uuid.Nil || sessionID == uuid.Nil {
		return nil, fmt.Errorf("session event: %w", apierr.ErrInvalidArgument)
	}
	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, apierr.ErrNotFound)
	}
	return sess, nil
}
