package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/export"
	"github.com/talkincode/shopbot/internal/store"
	"github.com/talkincode/shopbot/internal/webserver"
)

// registerProductRoutes registers read-only catalog endpoints plus exports.
// Products are created through the chat flow, so the API only lists,
// inspects, deletes and exports them.
func registerProductRoutes() {
	webserver.ApiGET("/catalog/products", listProducts)
	webserver.ApiGET("/catalog/products/:id", getProduct)
	webserver.ApiDELETE("/catalog/products/:id", deleteProduct)
	webserver.ApiGET("/catalog/export.xlsx", exportProductsXlsx)
	webserver.ApiGET("/catalog/export.csv", exportProductsCsv)
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	q := strings.TrimSpace(c.QueryParam("q"))
	owner := strings.TrimSpace(c.QueryParam("owner"))

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"id":         "id",
		"barcode":    "barcode",
		"name":       "name",
		"price":      "price",
		"created_at": "created_at",
	}
	sortCol, found := allowed[sortField]
	if !found || sortCol == "" {
		sortCol = "id"
	}

	db := GetDB(c).Model(&domain.Product{})
	if owner != "" {
		db = db.Where("owner_id = ?", owner)
	}
	if q != "" {
		db = db.Where("LOWER(name) LIKE ? OR barcode LIKE ?",
			"%"+strings.ToLower(q)+"%", "%"+q+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Product{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}

func exportService(c echo.Context) *export.Service {
	db := GetDB(c)
	return export.NewService(store.NewGormCatalogRepository(db), store.NewGormOrderRepository(db))
}

func exportProductsXlsx(c echo.Context) error {
	owner := strings.TrimSpace(c.QueryParam("owner"))
	data, err := exportService(c).ProductsWorkbook(c.Request().Context(), owner)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to build workbook", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="catalog.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func exportProductsCsv(c echo.Context) error {
	data, err := exportService(c).ProductsCSV(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to build csv", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="catalog.csv"`)
	return c.Blob(http.StatusOK, "text/csv", data)
}
