package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/webserver"
	"github.com/talkincode/shopbot/pkg/metrics"
)

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", queryMetric)
}

// queryMetric returns raw datapoints for one gauge over the requested window
// (default last hour).
func queryMetric(c echo.Context) error {
	name := c.Param("name")
	end := time.Now().Unix()
	start := end - 3600
	if v, err := strconv.ParseInt(c.QueryParam("start"), 10, 64); err == nil && v > 0 {
		start = v
	}
	if v, err := strconv.ParseInt(c.QueryParam("end"), 10, 64); err == nil && v > 0 {
		end = v
	}
	points, err := metrics.QueryRange(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metric", err.Error())
	}
	return ok(c, map[string]interface{}{
		"name":   name,
		"start":  start,
		"end":    end,
		"points": points,
	})
}
