package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/policy"
	"github.com/qingtalk/guanzhao/internal/services"
)

type Services struct {
	Gate       services.TriggerGateService
	Engagement services.EngagementService
	Tracker    services.SessionTrackerService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, rdb *goredis.Client) (Services, error) {
	log.Info("Wiring services...")

	pol := policy.Default()
	if cfg.PolicyPath != "" {
		loaded, err := policy.Load(cfg.PolicyPath)
		if err != nil {
			return Services{}, fmt.Errorf("load engagement policy: %w", err)
		}
		pol = loaded
		log.Info("Engagement policy loaded", "path", cfg.PolicyPath)
	}

	var (
		reader      services.SettingsReader = services.NewSettingsReader(db, reposet.Settings)
		invalidator services.SettingsInvalidator
	)
	if rdb != nil {
		cached := services.NewCachedSettingsReader(rdb, reader, cfg.SettingsCacheTTL, log)
		reader = cached
		invalidator, _ = cached.(services.SettingsInvalidator)
	}

	gate := services.NewTriggerGateService(db, log, reader, reposet.Cooldowns)
	engagement := services.NewEngagementService(db, log, pol,
		reposet.Settings, reposet.Budgets, reposet.Cooldowns, reposet.History, invalidator)
	tracker := services.NewSessionTrackerService(db, log, reposet.Sessions, reposet.History)

	return Services{
		Gate:       gate,
		Engagement: engagement,
		Tracker:    tracker,
	}, nil
}
