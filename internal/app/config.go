package app

import (
	"strings"
	"time"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/utils"
)

type Config struct {
	ServiceTokenSecret string
	PolicyPath         string
	SettingsCacheTTL   time.Duration
	AllowOrigins       []string
	HTTPAddr           string
	Environment        string
	Version            string
}

func LoadConfig(log *logger.Logger) Config {
	serviceTokenSecret := utils.GetEnv("SERVICE_TOKEN_SECRET", "defaultsecret", log)
	policyPath := utils.GetEnv("ENGAGEMENT_POLICY_PATH", "", log)
	cacheTTLSeconds := utils.GetEnvAsInt("SETTINGS_CACHE_TTL", 30, log)
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	httpAddr := utils.GetEnv("HTTP_ADDR", ":8080", log)
	environment := utils.GetEnv("ENVIRONMENT", "development", log)
	version := utils.GetEnv("SERVICE_VERSION", "dev", log)

	return Config{
		ServiceTokenSecret: serviceTokenSecret,
		PolicyPath:         policyPath,
		SettingsCacheTTL:   time.Duration(cacheTTLSeconds) * time.Second,
		AllowOrigins:       splitOrigins(origins),
		HTTPAddr:           httpAddr,
		Environment:        environment,
		Version:            version,
	}
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
