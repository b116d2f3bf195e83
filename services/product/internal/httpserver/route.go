package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/health"
	"github.com/micromart/services/pkg/metrics"
)

type Deps struct {
	ProductHandler *ProductHTTP
	HealthHandler  *health.Handler
	Metrics        *metrics.Registry
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", d.HealthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	products := e.Group("/api/products")
	products.POST("", d.ProductHandler.CreateProduct)
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("/analytics/summary", d.ProductHandler.AnalyticsSummary)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.PUT("/:id/stock", d.ProductHandler.UpdateStock)
	products.POST("/:id/purchase", d.ProductHandler.Purchase)
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
