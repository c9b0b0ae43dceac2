package client

import (
	"fmt"
	"time"

	"dp-canteen-service/internal/config"
	"dp-canteen-service/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDBClient opens the database, retrying with exponential backoff while it comes up,
// and migrates the schema.
func InitDBClient(cfg config.Database, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var db *gorm.DB
	connect := func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err != nil {
			logger.Warn("database not reachable yet", zap.String("driver", cfg.Driver), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(connect, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8)); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps transactions serialized
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(model.Tables()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database ready", zap.String("driver", cfg.Driver))
	return db, nil
}
