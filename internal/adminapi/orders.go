package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/domain"
	"github.com/talkincode/shopbot/internal/store"
	"github.com/talkincode/shopbot/internal/webserver"
	"gorm.io/gorm"
)

type orderPayload struct {
	Name string `json:"name"`
}

func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiPUT("/orders/:id", updateOrder)
	webserver.ApiDELETE("/orders/:id", deleteOrder)
	webserver.ApiGET("/orders/:id/export.xlsx", exportOrderXlsx)
}

func listOrders(c echo.Context) error {
	page, pageSize := parsePagination(c)
	owner := strings.TrimSpace(c.QueryParam("owner"))

	db := GetDB(c).Model(&domain.Order{})
	if owner != "" {
		db = db.Where("owner_id = ?", owner)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}

	var rows []domain.Order
	if err := db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

// getOrder returns the order together with its line items and total.
func getOrder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}

	var o domain.Order
	if err := GetDB(c).Where("id = ?", id).First(&o).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	}

	var items []domain.OrderItem
	if err := GetDB(c).Where("order_id = ?", id).Order("created_at ASC").Find(&items).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order items", err.Error())
	}

	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}

	return ok(c, map[string]interface{}{
		"order": o,
		"items": items,
		"total": total,
	})
}

func updateOrder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload orderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name is required", nil)
	}

	var o domain.Order
	if err := GetDB(c).Where("id = ?", id).First(&o).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Order not found", nil)
	}
	orders := store.NewGormOrderRepository(GetDB(c))
	if err := orders.Rename(c.Request().Context(), o.OwnerID, id, payload.Name); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to rename order", err.Error())
	}
	o.Name = payload.Name
	return ok(c, o)
}

func deleteOrder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&domain.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Order{}, id).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete order", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}

func exportOrderXlsx(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	data, err := exportService(c).OrderWorkbook(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to build workbook", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="order.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
