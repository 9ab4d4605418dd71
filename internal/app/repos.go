package app

import (
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/repos"
)

type Repos struct {
	Settings  repos.EngagementSettingsRepo
	Budgets   repos.EngagementBudgetRepo
	Cooldowns repos.TriggerCooldownRepo
	Sessions  repos.ChatSessionRepo
	History   repos.TriggerHistoryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Settings:  repos.NewEngagementSettingsRepo(db, log),
		Budgets:   repos.NewEngagementBudgetRepo(db, log),
		Cooldowns: repos.NewTriggerCooldownRepo(db, log),
		Sessions:  repos.NewChatSessionRepo(db, log),
		History:   repos.NewTriggerHistoryRepo(db, log),
	}
}
