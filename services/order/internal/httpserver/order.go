package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/services/order/internal/service"
	"github.com/micromart/services/services/order/internal/transport"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.CreateOrder(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("create_order_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			l.Warn("create_order_failed", "status", 400, "reason", "user not found")
			return echo.NewHTTPError(http.StatusBadRequest, "user not found")
		case errors.Is(err, service.ErrProductLookup):
			l.Warn("create_order_failed", "status", 400, "reason", "product not found")
			return echo.NewHTTPError(http.StatusBadRequest, "product not found")
		case errors.Is(err, service.ErrInsufficientStock):
			l.Warn("create_order_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentFailed):
			l.Warn("create_order_failed", "status", 400, "reason", "payment failed")
			return echo.NewHTTPError(http.StatusBadRequest, "payment processing failed")
		default:
			l.Error("create_order_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create order")
		}
	}

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	order, err := h.Svc.GetOrder(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_order_failed", "status", 404, "order_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get order")
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), 0)

	res, err := h.Svc.ListOrders(ctx, c.QueryParam("userId"), c.QueryParam("status"), page, limit)
	if err != nil {
		l.Error("get_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	var req transport.StatusRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_status_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("update_status_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNotFound):
			l.Warn("update_status_failed", "status", 404, "order_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		default:
			l.Error("update_status_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update status")
		}
	}

	l.Info("update_status_success", "order_id", order.ID, "order_status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) RevenueAnalytics(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.revenue_analytics")

	days := parseIntDefault(c.QueryParam("days"), 30)

	report, err := h.Svc.RevenueReport(ctx, days)
	if err != nil {
		l.Error("revenue_analytics_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build revenue report")
	}

	return c.JSON(http.StatusOK, report)
}

func (h *OrderHTTP) TopProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.top_products")

	rows, err := h.Svc.TopProducts(ctx)
	if err != nil {
		l.Error("top_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build top products")
	}

	return c.JSON(http.StatusOK, rows)
}
