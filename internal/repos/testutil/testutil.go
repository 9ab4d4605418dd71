package testutil

import (
	"errors"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/qingtalk/guanzhao/internal/logger"
	"github.com/qingtalk/guanzhao/internal/types"
)

var errNoTestDB = errors.New("no test database configured")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated test database. TEST_POSTGRES_DSN selects Postgres;
// TEST_SQLITE=1 selects an in-memory SQLite database. With neither set the
// test skips.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}
		var err error
		switch {
		case os.Getenv("TEST_POSTGRES_DSN") != "":
			db, err = gorm.Open(postgres.Open(os.Getenv("TEST_POSTGRES_DSN")), cfg)
		case os.Getenv("TEST_SQLITE") != "":
			db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
			if err == nil {
				// One connection: the sqlite driver answers concurrent
				// writers with "database is locked" instead of queueing.
				if sqlDB, derr := db.DB(); derr == nil {
					sqlDB.SetMaxOpenConns(1)
				}
			}
		default:
			dbErr = errNoTestDB
			return
		}
		if err != nil {
			dbErr = err
			return
		}
		dbErr = autoMigrateAll(db)
	})

	if errors.Is(dbErr, errNoTestDB) {
		tb.Skip("set TEST_POSTGRES_DSN or TEST_SQLITE=1 to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

// Tx opens a transaction that rolls back when the test ends, so tests never
// leak rows into each other.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.EngagementSettings{},
		&types.EngagementBudget{},
		&types.TriggerCooldown{},
		&types.ChatSession{},
		&types.TriggerHistory{},
	)
}
