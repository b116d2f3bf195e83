package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/cache"
	"github.com/micromart/services/pkg/health"
	"github.com/micromart/services/pkg/httperr"
	"github.com/micromart/services/pkg/metrics"
	metricsmw "github.com/micromart/services/pkg/middleware/metrics"
	"github.com/micromart/services/pkg/peerclient"
	"github.com/micromart/services/services/order/internal/models"
	"github.com/micromart/services/services/order/internal/repo"
	"github.com/micromart/services/services/order/internal/service"
)

type testEnv struct {
	E   *echo.Echo
	Svc *service.OrderService
}

// newTestEnv stands up the order routes against in-memory peers that know
// one user and one product.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}))

	users := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/u1" {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"u1","email":"u1@example.com"}`))
	}))
	t.Cleanup(users.Close)

	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/products/p1/purchase":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/products/p1":
			w.Write([]byte(`{"id":"p1","name":"widget","price":10,"stock":5}`))
		default:
			http.Error(w, `{"error":"product not found"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(products.Close)

	m := metrics.NewRegistry("order-service")

	svc := &service.OrderService{
		Repo:     &repo.GormRepo{DB: db},
		Cache:    cache.NewTTLStore(m.CacheHits, m.CacheMisses),
		CacheTTL: time.Minute,
		Users:    peerclient.New(users.URL, "user-service", nil),
		Products: peerclient.New(products.URL, "product-service", nil),
		Pay: func(ctx context.Context, amount float64) error {
			return nil
		},
	}

	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	e.Use(metricsmw.RequestMetrics(m))
	Register(e, &Deps{
		OrderHandler:  &OrderHTTP{Svc: svc},
		HealthHandler: health.NewHandler("order-service", db, nil),
		Metrics:       m,
	})

	return &testEnv{E: e, Svc: svc}
}

func (env *testEnv) doJSON(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func errBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCreateOrderEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.doJSON(http.MethodPost, "/api/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":2}],"payment_method":"card"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.StatusPending, order.Status)
	assert.InDelta(t, 20.0, order.TotalAmount, 0.001)

	rec = env.doJSON(http.MethodGet, "/api/orders/"+order.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderEndpoint_ErrorMapping(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.doJSON(http.MethodPost, "/api/orders", `{"items":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errBody(t, rec), "user_id")

	rec = env.doJSON(http.MethodPost, "/api/orders",
		`{"user_id":"ghost","items":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user not found", errBody(t, rec))

	rec = env.doJSON(http.MethodPost, "/api/orders",
		`{"user_id":"u1","items":[{"product_id":"ghost","quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "product not found", errBody(t, rec))

	rec = env.doJSON(http.MethodPost, "/api/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":9}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errBody(t, rec), "widget")
}

func TestCreateOrderEndpoint_PaymentFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.Svc.Pay = func(ctx context.Context, amount float64) error {
		return service.ErrPaymentFailed
	}

	rec := env.doJSON(http.MethodPost, "/api/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment processing failed", errBody(t, rec))
}

func TestUpdateStatusEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	order := &models.Order{UserID: "u1", TotalAmount: 10, Currency: "USD", Status: models.StatusPending}
	require.NoError(t, env.Svc.Repo.CreateOrder(ctx, order))

	rec := env.doJSON(http.MethodPut, "/api/orders/"+order.ID+"/status", `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(http.MethodPut, "/api/orders/"+order.ID+"/status", `{"status":"teleported"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(http.MethodPut, "/api/orders/missing/status", `{"status":"shipped"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order not found", errBody(t, rec))
}

func TestAnalyticsEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	order := &models.Order{
		UserID:      "u1",
		TotalAmount: 40,
		Currency:    "USD",
		Status:      models.StatusDelivered,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "widget", Price: 10, Quantity: 4, Subtotal: 40},
		},
	}
	require.NoError(t, env.Svc.Repo.CreateOrder(ctx, order))

	rec := env.doJSON(http.MethodGet, "/api/orders/analytics/revenue?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report service.RevenueReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 7, report.Days)
	assert.InDelta(t, 40.0, report.Revenue, 0.001)

	rec = env.doJSON(http.MethodGet, "/api/orders/analytics/top-products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []repo.TopProduct
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ProductID)
}
