package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/services"
)

type SessionHandler struct {
	log     *logger.Logger
	tracker services.SessionTrackerService
}

func NewSessionHandler(log *logger.Logger, tracker services.SessionTrackerService) *SessionHandler {
	return &SessionHandler{
		log:     log.With("handler", "SessionHandler"),
		tracker: tracker,
	}
}

// POST /api/engagement/session-event
// The chat backend reports session lifecycle events; the response may carry
// an advisory trigger candidate for the caller to evaluate and commit.
func (h *SessionHandler) SessionEvent(c *gin.Context) {
	var req struct {
		UserID        uuid.UUID `json:"user_id"`
		Event         string    `json:"event"`
		SessionID     uuid.UUID `json:"session_id"`
		Timezone      string    `json:"timezone"`
		MessagesCount int       `json:"messages_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var (
		result *services.SessionEventResult
		err    error
	)
	switch req.Event {
	case "started":
		result, err = h.tracker.Start(c.Request.Context(), req.UserID, req.Timezone)
	case "continued":
		result, err = h.tracker.Continue(c.Request.Context(), req.UserID, req.SessionID, req.MessagesCount)
	case "ended":
		result, err = h.tracker.End(c.Request.Context(), req.UserID, req.SessionID)
	default:
		RespondError(c, http.StatusBadRequest, "unknown_event", errors.New("event must be started, continued, or ended"))
		return
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
