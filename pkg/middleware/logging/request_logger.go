// Package loggingmw injects a request-scoped logger into the context and
// writes one line per request once the response is committed.
package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/logging"
)

func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				// The RequestID middleware writes a generated id to the
				// response before we run.
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			} else {
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}

			l := base.With(
				"method", req.Method,
				"route", c.Path(),
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
			}

			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", c.Response().Size,
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}

			switch {
			case err != nil || status >= 500:
				l.Error("http request", attrs...)
			case status >= 400:
				l.Warn("http request", attrs...)
			default:
				l.Info("http request", attrs...)
			}
			return nil
		}
	}
}
