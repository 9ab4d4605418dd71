package app

import (
	"github.com/gin-gonic/gin"

	"github.com/qingtalk/guanzhao/internal/observability"
	"github.com/qingtalk/guanzhao/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		EngagementHandler: handlerset.Engagement,
		SessionHandler:    handlerset.Session,
		AuthMiddleware:    mw.Auth,
		AllowOrigins:      cfg.AllowOrigins,
		TracingEnabled:    observability.Enabled(),
	})
}
