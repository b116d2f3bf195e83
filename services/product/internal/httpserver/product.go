package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/services/product/internal/service"
	"github.com/micromart/services/services/product/internal/transport"
)

type ProductHTTP struct {
	Svc *service.ProductService
}

func (h *ProductHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("create_product_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		l.Error("create_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create product")
	}

	l.Info("create_product_success", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	product, err := h.Svc.GetProduct(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_product_failed", "status", 404, "product_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("get_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), 0)
	category := c.QueryParam("category")

	res, err := h.Svc.ListProducts(ctx, page, limit, category)
	if err != nil {
		l.Error("get_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, res)
}

func (h *ProductHTTP) UpdateStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update_stock")

	var req transport.StockRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_stock_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.SetStock(ctx, c.Param("id"), req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("update_stock_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNotFound):
			l.Warn("update_stock_failed", "status", 404, "product_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("update_stock_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update stock")
		}
	}

	l.Info("update_stock_success", "product_id", product.ID, "stock", product.Stock)
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) Purchase(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.purchase")

	var req transport.StockRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("purchase_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.Purchase(ctx, c.Param("id"), req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("purchase_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNotFound):
			l.Warn("purchase_failed", "status", 404, "product_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		case errors.Is(err, service.ErrInsufficientStock):
			l.Warn("purchase_failed", "status", 400, "reason", "insufficient stock", "product_id", c.Param("id"))
			return echo.NewHTTPError(http.StatusBadRequest, "insufficient stock")
		default:
			l.Error("purchase_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot purchase product")
		}
	}

	l.Info("purchase_success", "product_id", product.ID, "stock", product.Stock)
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) AnalyticsSummary(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.analytics_summary")

	res, err := h.Svc.Summary(ctx)
	if err != nil {
		l.Error("analytics_summary_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build summary")
	}

	return c.JSON(http.StatusOK, res)
}

func (h *ProductHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), 0)

	res, err := h.Svc.Search(ctx, c.QueryParam("q"), page, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("search_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSearchUnavailable):
			l.Warn("search_failed", "status", 503, "reason", "search unavailable")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
		default:
			l.Error("search_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "search error")
		}
	}

	return c.JSON(http.StatusOK, res)
}
