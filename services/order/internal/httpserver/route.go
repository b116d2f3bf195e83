package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/health"
	"github.com/micromart/services/pkg/metrics"
)

type Deps struct {
	OrderHandler  *OrderHTTP
	HealthHandler *health.Handler
	Metrics       *metrics.Registry
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", d.HealthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	orders := e.Group("/api/orders")
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/analytics/revenue", d.OrderHandler.RevenueAnalytics)
	orders.GET("/analytics/top-products", d.OrderHandler.TopProducts)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PUT("/:id/status", d.OrderHandler.UpdateStatus)
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
