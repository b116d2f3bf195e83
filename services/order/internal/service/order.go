package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/cache"
	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/pkg/pagination"
	"github.com/micromart/services/pkg/peerclient"
	"github.com/micromart/services/services/order/internal/models"
	"github.com/micromart/services/services/order/internal/repo"
	"github.com/micromart/services/services/order/internal/transport"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrUserNotFound      = errors.New("user not found")     // 400, upstream
	ErrProductLookup     = errors.New("product lookup")     // 400, upstream
	ErrInsufficientStock = errors.New("insufficient stock") // 400
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type OrderService struct {
	Repo     *repo.GormRepo
	Cache    cache.Store
	CacheTTL time.Duration

	Users    *peerclient.Client
	Products *peerclient.Client
	Pay      PaymentFunc

	Created         prometheus.Counter
	PaymentFailures prometheus.Counter
	Revenue         prometheus.Counter
	Processing      prometheus.Histogram

	Events EventPublisher
}

type ListResult struct {
	Data []models.Order  `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// CreateOrder runs the creation saga: fetch the user, price every item
// against live product data, take payment, persist, then decrement stock
// best-effort. There is no compensation — a stock-decrement failure after the
// order is persisted is logged and left standing.
func (s *OrderService) CreateOrder(ctx context.Context, req transport.CreateOrderRequest) (*models.Order, error) {
	start := time.Now()
	l := logging.FromContext(ctx).With("svc", "order.create")

	if req.UserID == "" {
		return nil, fmt.Errorf("%w: missing fields: user_id", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
	}

	var user transport.PeerUser
	if err := s.Users.GetJSON(ctx, "/api/users/"+req.UserID, "/api/users/:id", &user); err != nil {
		l.Warn("user lookup failed", "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.UserID)
	}

	var (
		items []models.OrderItem
		total float64
	)
	for _, item := range req.Items {
		var product transport.PeerProduct
		if err := s.Products.GetJSON(ctx, "/api/products/"+item.ProductID, "/api/products/:id", &product); err != nil {
			l.Warn("product lookup failed", "product_id", item.ProductID, "error", err)
			return nil, fmt.Errorf("%w: %s", ErrProductLookup, item.ProductID)
		}
		if item.Quantity > product.Stock {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
		}

		subtotal := product.Price * float64(item.Quantity)
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	if err := s.Pay(ctx, total); err != nil {
		if s.PaymentFailures != nil {
			s.PaymentFailures.Inc()
		}
		l.Warn("payment failed", "amount", total, "error", err)
		return nil, ErrPaymentFailed
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	order := &models.Order{
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     total,
		Currency:        currency,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.StatusPending,
	}
	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	// Best-effort stock decrement. The order stays persisted even if this
	// fails, which leaves an inconsistency window between orders and
	// inventory.
	for _, item := range items {
		path := "/api/products/" + item.ProductID + "/purchase"
		body := map[string]int{"quantity": item.Quantity}
		if err := s.Products.PostJSON(ctx, path, "/api/products/:id/purchase", body, nil); err != nil {
			l.Error("stock decrement failed", "order_id", order.ID, "product_id", item.ProductID, "error", err)
		}
	}

	if s.Created != nil {
		s.Created.Inc()
	}
	if s.Revenue != nil {
		s.Revenue.Add(total)
	}
	if s.Processing != nil {
		s.Processing.Observe(time.Since(start).Seconds())
	}
	s.Cache.Clear()

	if s.Events != nil {
		if err := s.Events.Publish(ctx, order.ID, map[string]any{
			"type":    "order_created",
			"orderID": order.ID,
			"userID":  order.UserID,
			"total":   order.TotalAmount,
		}); err != nil {
			l.Warn("publish order_created failed", "error", err)
		}
	}

	l.Info("order created", "order_id", order.ID, "total", order.TotalAmount)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	key := "order:" + id
	if b, ok := s.Cache.Get(key); ok {
		var o models.Order
		if err := json.Unmarshal(b, &o); err == nil {
			return &o, nil
		}
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}

	if b, err := json.Marshal(order); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID, status string, page, limit int) (*ListResult, error) {
	offset, limit := pagination.Calculate(page, limit)
	key := fmt.Sprintf("orders:userId=%s&status=%s&page=%d&limit=%d", userID, status, page, limit)

	if b, ok := s.Cache.Get(key); ok {
		var res ListResult
		if err := json.Unmarshal(b, &res); err == nil {
			return &res, nil
		}
	}

	total, orders, err := s.Repo.ListOrders(ctx, userID, status, offset, limit)
	if err != nil {
		return nil, err
	}

	res := &ListResult{
		Data: orders,
		Meta: pagination.NewMeta(page, limit, total),
	}
	if b, err := json.Marshal(res); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return res, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	order, err := s.Repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, err
	}

	s.Cache.Clear()
	return order, nil
}

type RevenueReport struct {
	Days    int     `json:"days"`
	Orders  int64   `json:"orders"`
	Revenue float64 `json:"revenue"`
}

func (s *OrderService) RevenueReport(ctx context.Context, days int) (*RevenueReport, error) {
	if days < 1 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	revenue, count, err := s.Repo.Revenue(ctx, since)
	if err != nil {
		return nil, err
	}

	return &RevenueReport{Days: days, Orders: count, Revenue: revenue}, nil
}

func (s *OrderService) TopProducts(ctx context.Context) ([]repo.TopProduct, error) {
	return s.Repo.TopProducts(ctx, 10)
}
