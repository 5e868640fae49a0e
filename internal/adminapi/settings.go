package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/webserver"
)

type settingPayload struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

func registerSettingsRoutes() {
	webserver.ApiGET("/settings", listSettings)
	webserver.ApiPUT("/settings", updateSetting)
}

func listSettings(c echo.Context) error {
	var rows []domain.SysConfig
	if err := GetDB(c).Order("sort ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}
	return ok(c, rows)
}

func updateSetting(c echo.Context) error {
	var payload settingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse setting", err.Error())
	}
	payload.Type = strings.TrimSpace(payload.Type)
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Type == "" || payload.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Type and name are required", nil)
	}
	if err := webserver.GetApp().ConfigMgr().Set(payload.Type, payload.Name, payload.Value); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update setting", err.Error())
	}
	return ok(c, payload)
}
