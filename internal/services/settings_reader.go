package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/repos"
	"github.com/qingtalk/guanzhao/internal/types"
)

// SettingsReader serves settings reads on the evaluate path. The gate only
// needs read access, and slightly stale reads are acceptable there, so the
// reader may be backed by a short-TTL cache. Writers go through the repo and
// invalidate.
type SettingsReader interface {
	Read(ctx context.Context, userID uuid.UUID) (*types.EngagementSettings, error)
}

// SettingsInvalidator is implemented by cached readers; the engagement
// service calls it after every settings write.
type SettingsInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type repoSettingsReader struct {
	db   *gorm.DB
	repo repos.EngagementSettingsRepo
}

func NewSettingsReader(db *gorm.DB, repo repos.EngagementSettingsRepo) SettingsReader {
	return &repoSettingsReader{db: db, repo: repo}
}

func (r *repoSettingsReader) Read(ctx context.Context, userID uuid.UUID) (*types.EngagementSettings, error) {
	return r.repo.Get(ctx, nil, userID)
}

type cachedSettingsReader struct {
	rdb   *goredis.Client
	inner SettingsReader
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedSettingsReader wraps a reader with a Redis read-through cache.
// Cache failures degrade to the inner reader; they never fail an evaluate.
func NewCachedSettingsReader(rdb *goredis.Client, inner SettingsReader, ttl time.Duration, baseLog *logger.Logger) SettingsReader {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &cachedSettingsReader{
		rdb:   rdb,
		inner: inner,
		ttl:   ttl,
		log:   baseLog.With("service", "SettingsCache"),
	}
}

func settingsCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("engagement:settings:%s", userID)
}

func (c *cachedSettingsReader) Read(ctx context.Context, userID uuid.UUID) (*types.EngagementSettings, error) {
	raw, err := c.rdb.Get(ctx, settingsCacheKey(userID)).Bytes()
	if err == nil {
		var row types.EngagementSettings
		if jerr := json.Unmarshal(raw, &row); jerr == nil {
			return &row, nil
		}
		// Poisoned entry; fall through to the store.
	} else if err != goredis.Nil {
		c.log.Warn("settings cache read failed", "user_id", userID, "error", err)
	}

	row, err := c.inner.Read(ctx, userID)
	if err != nil || row == nil {
		return row, err
	}
	if raw, jerr := json.Marshal(row); jerr == nil {
		if serr := c.rdb.Set(ctx, settingsCacheKey(userID), raw, c.ttl).Err(); serr != nil {
			c.log.Warn("settings cache write failed", "user_id", userID, "error", serr)
		}
	}
	return row, nil
}

func (c *cachedSettingsReader) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, settingsCacheKey(userID)).Err(); err != nil {
		c.log.Warn("settings cache invalidate failed", "user_id", userID, "error", err)
	}
}
