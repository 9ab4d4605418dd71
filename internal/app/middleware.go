package app

import (
	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/middleware"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.ServiceTokenSecret),
	}
}
