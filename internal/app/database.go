package app

import (
	"fmt"
	"time"

	"github.com/talkincode/shopbot/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the postgres connection pool. TranslateError is enabled
// so unique-constraint violations surface as gorm.ErrDuplicatedKey instead of
// driver-specific errors.
func getDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())

	logLevel := logger.Silent
	pool, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		zap.S().Panicf("failed to connect database: %v", err)
	}

	sqlDB, err := pool.DB()
	if err != nil {
		zap.S().Panicf("failed to obtain sql.DB: %v", err)
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return pool
}
