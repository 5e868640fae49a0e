package app

import (
	"time"

	"github.com/spf13/cast"
	"github.com/talkincode/shopbot/internal/domain"
	"go.uber.org/zap"
)

// ConfigManager reads and writes runtime settings stored in sys_config.
type ConfigManager struct {
	app *Application
}

func NewConfigManager(a *Application) *ConfigManager {
	return &ConfigManager{app: a}
}

func (cm *ConfigManager) getValue(category, name string) string {
	var cfg domain.SysConfig
	err := cm.app.gormDB.
		Where("type = ? AND name = ?", category, name).
		First(&cfg).Error
	if err != nil {
		return ""
	}
	return cfg.Value
}

func (cm *ConfigManager) GetString(category, name string) string {
	return cm.getValue(category, name)
}

func (cm *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(cm.getValue(category, name))
}

func (cm *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(cm.getValue(category, name))
}

func (cm *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(cm.getValue(category, name))
}

// Set upserts one setting.
func (cm *ConfigManager) Set(category, name, value string) error {
	var count int64
	cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", category, name).
		Count(&count)
	if count == 0 {
		return cm.app.gormDB.Create(&domain.SysConfig{
			Type:      category,
			Name:      name,
			Value:     value,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}).Error
	}
	err := cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", category, name).
		Updates(map[string]interface{}{"value": value, "updated_at": time.Now()}).Error
	if err != nil {
		zap.L().Error("failed to update setting",
			zap.String("category", category),
			zap.String("name", name),
			zap.Error(err))
	}
	return err
}
