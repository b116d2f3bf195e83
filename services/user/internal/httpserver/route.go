package httpserver

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/health"
	"github.com/micromart/services/pkg/metrics"
)

type Deps struct {
	UserHandler   *UserHTTP
	HealthHandler *health.Handler
	Metrics       *metrics.Registry
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health", d.HealthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	users := e.Group("/api/users")
	users.POST("/register", d.UserHandler.Register)
	users.POST("/login", d.UserHandler.Login)
	users.GET("", d.UserHandler.GetUsers)
	users.GET("/:id", d.UserHandler.GetUser)
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
