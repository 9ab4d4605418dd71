package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/qingtalk/guanzhao/internal/handlers"
	"github.com/qingtalk/guanzhao/internal/middleware"
)

type RouterConfig struct {
	EngagementHandler *handlers.EngagementHandler
	SessionHandler    *handlers.SessionHandler
	AuthMiddleware    *middleware.AuthMiddleware
	AllowOrigins      []string
	TracingEnabled    bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("guanzhao"))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api/engagement")
	api.Use(cfg.AuthMiddleware.RequireServiceAuth())
	// Sessions
	api.POST("/session-event", cfg.SessionHandler.SessionEvent)
	// Admission control
	api.POST("/evaluate", cfg.EngagementHandler.Evaluate)
	api.POST("/commit", cfg.EngagementHandler.Commit)
	api.POST("/feedback", cfg.EngagementHandler.Feedback)
	// Settings
	api.GET("/settings/:userID", cfg.EngagementHandler.GetSettings)
	api.PATCH("/settings/:userID", cfg.EngagementHandler.UpdateSettings)
	api.POST("/settings/:userID/reset", cfg.EngagementHandler.ResetSettings)
	// Budget
	api.GET("/budget/:userID", cfg.EngagementHandler.GetBudget)
	// In-nudge actions
	api.POST("/action", cfg.EngagementHandler.Action)

	return router
}
