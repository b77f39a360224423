package config

import (
	"fmt"
	"os"
	"path/filepath"

	puresqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GetDb opens the configured database.
func GetDb(cfg *Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for postgres")
		}
		return gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	case "sqlite", "sqlite-pure", "":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), os.ModePerm); err != nil {
			return nil, err
		}

		dialector := sqlite.Open(cfg.Database.Path + "?_busy_timeout=5000")
		if cfg.Database.Driver == "sqlite-pure" {
			dialector = puresqlite.Open(cfg.Database.Path + "?_pragma=busy_timeout(5000)")
		}

		db, err := gorm.Open(dialector, gormConfig)
		if err != nil {
			return nil, err
		}

		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)

		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}
