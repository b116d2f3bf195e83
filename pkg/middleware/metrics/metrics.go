package metricsmw

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/metrics"
)

// RequestMetrics wraps the full response lifecycle: the error handler runs
// before the sample is taken, so the recorded status is the one the client
// saw. Fires exactly once per request.
func RequestMetrics(m *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			dur := time.Since(start)
			status := strconv.Itoa(c.Response().Status)
			route := c.Path()
			if route == "" || route == "/*" {
				// No matched route pattern: fall back to the raw path.
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			m.RequestsTotal.WithLabelValues(method, route, status).Inc()
			m.RequestDuration.WithLabelValues(method, route, status).Observe(dur.Seconds())

			return nil
		}
	}
}
