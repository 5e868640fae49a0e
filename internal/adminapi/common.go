package adminapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/webserver"
	"gorm.io/gorm"
)

// InitRouter registers every admin API route group. Call once after
// webserver.Init.
func InitRouter() {
	registerProductRoutes()
	registerOrderRoutes()
	registerSettingsRoutes()
	registerBotRoutes()
	registerMetricsRoutes()
}

func GetDB(c echo.Context) *gorm.DB {
	return webserver.GetDB().WithContext(c.Request().Context())
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code": 0,
		"data": data,
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"code":    code,
		"message": message,
		"details": details,
	})
}

func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code":     0,
		"data":     rows,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// parsePagination reads page/pageSize query params with sane bounds.
func parsePagination(c echo.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}
