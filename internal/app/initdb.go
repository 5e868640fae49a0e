package app

import (
	"strings"

	"github.com/talkincode/shopbot/internal/domain"
	"go.uber.org/zap"
)

type configSchema struct {
	Key         string
	Default     string
	Description string
}

var configSchemas = []configSchema{
	{Key: "session.IdleTimeoutSecs", Default: "300", Description: "Idle seconds before an in-flight conversation is swept"},
	{Key: "catalog.PageSize", Default: "10", Description: "Products shown by the catalog command"},
	{Key: "orders.RetentionDays", Default: "0", Description: "Purge orders older than N days (0 disables)"},
	{Key: "ocr.Engine", Default: "2", Description: "OCR engine selector sent to the recognition API"},
}

// checkSettings initializes missing sys_config entries with their defaults.
func (a *Application) checkSettings() {
	for sortid, schema := range configSchemas {
		// Parse key: "category.name" -> category, name
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		category := parts[0]
		name := parts[1]

		// Check whether the configuration already exists
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		// e.g., if the configuration does not exist, create the default configuration
		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     0,
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}
