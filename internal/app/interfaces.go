package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopbot/config"
	"github.com/talkincode/shopbot/internal/session"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// SessionProvider provides the conversation state table
type SessionProvider interface {
	SessionStore() *session.Store
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	SessionProvider
	ConfigManagerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
