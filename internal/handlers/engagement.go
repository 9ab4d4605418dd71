package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/apierr"
	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/services"
	"github.com/qingtalk/guanzhao/internal/types"
)

type EngagementHandler struct {
	log        *logger.Logger
	gate       services.TriggerGateService
	engagement services.EngagementService
}

func NewEngagementHandler(log *logger.Logger, gate services.TriggerGateService, engagement services.EngagementService) *EngagementHandler {
	return &EngagementHandler{
		log:        log.With("handler", "EngagementHandler"),
		gate:       gate,
		engagement: engagement,
	}
}

// POST /api/engagement/evaluate
// Dry-run admission check: may this trigger be shown to this user right now?
func (h *EngagementHandler) Evaluate(c *gin.Context) {
	var req struct {
		UserID    uuid.UUID `json:"user_id"`
		TriggerID string    `json:"trigger_id"`
		Channel   string    `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	decision, err := h.gate.Evaluate(c.Request.Context(), req.UserID, req.TriggerID, types.Channel(req.Channel))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, decision)
}

// POST /api/engagement/commit
// Authoritative fire: consume budget, record history, arm cooldown.
func (h *EngagementHandler) Commit(c *gin.Context) {
	var req struct {
		UserID       uuid.UUID `json:"user_id"`
		TriggerID    string    `json:"trigger_id"`
		Channel      string    `json:"channel"`
		TemplateID   string    `json:"template_id"`
		BudgetCost   int       `json:"budget_cost"`
		CooldownDays int       `json:"cooldown_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.engagement.CommitFiring(c.Request.Context(), req.UserID, req.TriggerID,
		types.Channel(req.Channel), req.TemplateID, req.BudgetCost, req.CooldownDays)
	if err != nil {
		if errors.Is(err, apierr.ErrBudgetExceeded) {
			c.JSON(http.StatusConflict, result)
			return
		}
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/engagement/feedback
func (h *EngagementHandler) Feedback(c *gin.Context) {
	var req struct {
		UserID    uuid.UUID `json:"user_id"`
		HistoryID uuid.UUID `json:"history_id"`
		Feedback  string    `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.engagement.RecordFeedback(c.Request.Context(), req.UserID, req.HistoryID, req.Feedback); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"recorded": true})
}

// GET /api/engagement/settings/:userID
func (h *EngagementHandler) GetSettings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	settings, err := h.engagement.GetSettings(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, settings)
}

// PATCH /api/engagement/settings/:userID
// Partial update; absent fields are untouched, explicit nulls clear.
func (h *EngagementHandler) UpdateSettings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var update services.SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	settings, err := h.engagement.UpdateSettings(c.Request.Context(), userID, update)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, settings)
}

// POST /api/engagement/settings/:userID/reset
func (h *EngagementHandler) ResetSettings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	if err := h.engagement.ResetSettings(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"reset": true})
}

// GET /api/engagement/budget/:userID?channel=in_app
func (h *EngagementHandler) GetBudget(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	ch := types.Channel(c.DefaultQuery("channel", string(types.ChannelInApp)))
	remaining, err := h.engagement.CheckRemaining(c.Request.Context(), userID, ch)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, remaining)
}

// POST /api/engagement/action
// User-facing controls surfaced inside nudges themselves.
func (h *EngagementHandler) Action(c *gin.Context) {
	var req struct {
		UserID          uuid.UUID `json:"user_id"`
		Action          string    `json:"action"`
		DurationMinutes int       `json:"duration_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var err error
	switch req.Action {
	case "snooze":
		d := time.Duration(req.DurationMinutes) * time.Minute
		if req.DurationMinutes == 0 {
			d = 24 * time.Hour
		}
		err = h.engagement.Snooze(c.Request.Context(), req.UserID, d)
	case "disable":
		err = h.engagement.Disable(c.Request.Context(), req.UserID)
	case "minimal":
		err = h.engagement.DowngradeToMinimal(c.Request.Context(), req.UserID)
	default:
		RespondError(c, http.StatusBadRequest, "unknown_action", errors.New("action must be snooze, disable, or minimal"))
		return
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	h.log.Info("engagement action applied", "user_id", req.UserID, "action", req.Action)
	RespondOK(c, gin.H{"applied": req.Action})
}
