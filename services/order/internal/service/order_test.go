package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/cache"
	"github.com/micromart/services/pkg/peerclient"
	"github.com/micromart/services/services/order/internal/models"
	"github.com/micromart/services/services/order/internal/repo"
	"github.com/micromart/services/services/order/internal/transport"
)

// fakePeers serves the user and product endpoints the saga calls and records
// every purchase POST it receives.
type fakePeers struct {
	mu        sync.Mutex
	users     map[string]transport.PeerUser
	products  map[string]transport.PeerProduct
	purchases []string

	userSrv    *httptest.Server
	productSrv *httptest.Server
}

func newFakePeers(t *testing.T) *fakePeers {
	t.Helper()
	f := &fakePeers{
		users:    make(map[string]transport.PeerUser),
		products: make(map[string]transport.PeerProduct),
	}

	f.userSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/users/")
		f.mu.Lock()
		user, ok := f.users[id]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(user)
	}))
	t.Cleanup(f.userSrv.Close)

	f.productSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/products/")
		if r.Method == http.MethodPost && strings.HasSuffix(rest, "/purchase") {
			id := strings.TrimSuffix(rest, "/purchase")
			f.mu.Lock()
			_, ok := f.products[id]
			if ok {
				f.purchases = append(f.purchases, id)
			}
			f.mu.Unlock()
			if !ok {
				http.Error(w, `{"error":"product not found"}`, http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		f.mu.Lock()
		product, ok := f.products[rest]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"product not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(product)
	}))
	t.Cleanup(f.productSrv.Close)

	return f
}

func (f *fakePeers) purchased() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.purchases...)
}

func newTestService(t *testing.T, peers *fakePeers) *OrderService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}))

	svc := &OrderService{
		Repo:     &repo.GormRepo{DB: db},
		Cache:    cache.NewTTLStore(nil, nil),
		CacheTTL: time.Minute,
		Pay: func(ctx context.Context, amount float64) error {
			return nil
		},
	}
	if peers != nil {
		svc.Users = peerclient.New(peers.userSrv.URL, "user-service", nil)
		svc.Products = peerclient.New(peers.productSrv.URL, "product-service", nil)
	}
	return svc
}

func TestCreateOrder_Saga(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.users["u1"] = transport.PeerUser{ID: "u1", Email: "u1@example.com"}
	peers.products["p1"] = transport.PeerProduct{ID: "p1", Name: "widget", Price: 10.00, Stock: 5}

	svc := newTestService(t, peers)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		UserID:          "u1",
		Items:           []transport.CreateOrderItem{{ProductID: "p1", Quantity: 3}},
		ShippingAddress: "1 Main St",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.InDelta(t, 30.00, order.TotalAmount, 0.001)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "widget", order.Items[0].Name)
	assert.InDelta(t, 30.00, order.Items[0].Subtotal, 0.001)

	// Persisted with its items.
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)

	// Stock decrement fired once per item.
	assert.Equal(t, []string{"p1"}, peers.purchased())
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakePeers(t))
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items: []transport.CreateOrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, transport.CreateOrderRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, transport.CreateOrderRequest{
		UserID: "u1",
		Items:  []transport.CreateOrderItem{{ProductID: "p1", Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.products["p1"] = transport.PeerProduct{ID: "p1", Name: "widget", Price: 10, Stock: 5}

	svc := newTestService(t, peers)
	_, err := svc.CreateOrder(context.Background(), transport.CreateOrderRequest{
		UserID: "ghost",
		Items:  []transport.CreateOrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, peers.purchased())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.users["u1"] = transport.PeerUser{ID: "u1", Email: "u1@example.com"}

	svc := newTestService(t, peers)
	_, err := svc.CreateOrder(context.Background(), transport.CreateOrderRequest{
		UserID: "u1",
		Items:  []transport.CreateOrderItem{{ProductID: "ghost", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductLookup)
}

func TestCreateOrder_InsufficientStockNamesProduct(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.users["u1"] = transport.PeerUser{ID: "u1", Email: "u1@example.com"}
	peers.products["p1"] = transport.PeerProduct{ID: "p1", Name: "widget", Price: 10, Stock: 2}

	svc := newTestService(t, peers)
	_, err := svc.CreateOrder(context.Background(), transport.CreateOrderRequest{
		UserID: "u1",
		Items:  []transport.CreateOrderItem{{ProductID: "p1", Quantity: 3}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "widget")
	assert.Empty(t, peers.purchased())
}

func TestCreateOrder_PaymentFailurePersistsNothing(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.users["u1"] = transport.PeerUser{ID: "u1", Email: "u1@example.com"}
	peers.products["p1"] = transport.PeerProduct{ID: "p1", Name: "widget", Price: 10, Stock: 5}

	svc := newTestService(t, peers)
	svc.Pay = func(ctx context.Context, amount float64) error {
		return ErrPaymentFailed
	}

	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		UserID: "u1",
		Items:  []transport.CreateOrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrPaymentFailed)

	var count int64
	require.NoError(t, svc.Repo.DB.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, peers.purchased())
}

func TestCreateOrder_StockDecrementFailureKeepsOrder(t *testing.T) {
	t.Parallel()

	peers := newFakePeers(t)
	peers.users["u1"] = transport.PeerUser{ID: "u1", Email: "u1@example.com"}
	peers.products["p1"] = transport.PeerProduct{ID: "p1", Name: "widget", Price: 10, Stock: 5}

	svc := newTestService(t, peers)
	// Remove the product after the price lookup so the decrement POST 404s.
	svc.Pay = func(ctx context.Context, amount float64) error {
		peers.mu.Lock()
		delete(peers.products, "p1")
		peers.mu.Unlock()
		return nil
	}

	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		UserID: "u1",
		Items:  []transport.CreateOrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, peers.purchased())
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()

	order := &models.Order{UserID: "u1", TotalAmount: 10, Currency: "USD", Status: models.StatusPending}
	require.NoError(t, svc.Repo.CreateOrder(ctx, order))

	updated, err := svc.UpdateStatus(ctx, order.ID, models.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)

	_, err = svc.UpdateStatus(ctx, order.ID, "teleported")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateStatus(ctx, "missing", models.StatusShipped)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders_FiltersAndPagination(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		status := models.StatusPending
		user := "u1"
		if i%2 == 1 {
			status = models.StatusShipped
		}
		if i >= 5 {
			user = "u2"
		}
		order := &models.Order{
			UserID:      user,
			TotalAmount: float64(i + 1),
			Currency:    "USD",
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, svc.Repo.DB.Create(order).Error)
	}

	all, err := svc.ListOrders(ctx, "", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, all.Data, 7)
	// Newest first.
	assert.True(t, all.Data[0].CreatedAt.After(all.Data[6].CreatedAt))

	u1, err := svc.ListOrders(ctx, "u1", "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, u1.Data, 5)
	assert.EqualValues(t, 5, u1.Meta.Total)

	shipped, err := svc.ListOrders(ctx, "u1", models.StatusShipped, 1, 10)
	require.NoError(t, err)
	assert.Len(t, shipped.Data, 2)

	paged, err := svc.ListOrders(ctx, "", "", 2, 3)
	require.NoError(t, err)
	assert.Len(t, paged.Data, 3)
	assert.EqualValues(t, 3, paged.Meta.Pages)
}

func TestGetOrder_CachedAfterFirstRead(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()

	order := &models.Order{UserID: "u1", TotalAmount: 10, Currency: "USD", Status: models.StatusPending}
	require.NoError(t, svc.Repo.CreateOrder(ctx, order))

	_, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Repo.DB.Where("id = ?", order.ID).Delete(&models.Order{}).Error)

	cached, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, cached.ID)

	_, err = svc.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevenueReport(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	fixtures := []struct {
		amount  float64
		status  string
		created time.Time
	}{
		{100, models.StatusDelivered, now.Add(-24 * time.Hour)},
		{50, models.StatusShipped, now.Add(-48 * time.Hour)},
		{999, models.StatusPending, now.Add(-24 * time.Hour)},  // wrong status
		{70, models.StatusDelivered, now.AddDate(0, 0, -40)},   // outside window
		{30, models.StatusCancelled, now.Add(-1 * time.Hour)},  // wrong status
	}
	for _, f := range fixtures {
		order := &models.Order{
			UserID:      "u1",
			TotalAmount: f.amount,
			Currency:    "USD",
			Status:      f.status,
			CreatedAt:   f.created,
		}
		require.NoError(t, svc.Repo.DB.Create(order).Error)
	}

	report, err := svc.RevenueReport(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Days)
	assert.EqualValues(t, 2, report.Orders)
	assert.InDelta(t, 150.0, report.Revenue, 0.001)

	// days < 1 falls back to the 30-day window.
	fallback, err := svc.RevenueReport(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, fallback.Days)
}

func TestTopProducts(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()

	order := &models.Order{
		UserID:      "u1",
		TotalAmount: 110,
		Currency:    "USD",
		Status:      models.StatusDelivered,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "widget", Price: 10, Quantity: 5, Subtotal: 50},
			{ProductID: "p2", Name: "gadget", Price: 30, Quantity: 2, Subtotal: 60},
		},
	}
	require.NoError(t, svc.Repo.CreateOrder(ctx, order))

	second := &models.Order{
		UserID:      "u2",
		TotalAmount: 20,
		Currency:    "USD",
		Status:      models.StatusPending,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "widget", Price: 10, Quantity: 2, Subtotal: 20},
		},
	}
	require.NoError(t, svc.Repo.CreateOrder(ctx, second))

	top, err := svc.TopProducts(ctx)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "p1", top[0].ProductID)
	assert.EqualValues(t, 7, top[0].TotalQuantity)
	assert.InDelta(t, 70.0, top[0].TotalRevenue, 0.001)
	assert.Equal(t, "p2", top[1].ProductID)
}
