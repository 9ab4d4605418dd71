package app

import (
	"github.com/qingtalk/guanzhao/internal/handlers"
	"github.com/qingtalk/guanzhao/internal/logger"
)

type Handlers struct {
	Engagement *handlers.EngagementHandler
	Session    *handlers.SessionHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Engagement: handlers.NewEngagementHandler(log, serviceset.Gate, serviceset.Engagement),
		Session:    handlers.NewSessionHandler(log, serviceset.Tracker),
	}
}
