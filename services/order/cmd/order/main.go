package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/micromart/services/pkg/cache"
	pkgdb "github.com/micromart/services/pkg/db"
	"github.com/micromart/services/pkg/events"
	"github.com/micromart/services/pkg/health"
	"github.com/micromart/services/pkg/httperr"
	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/pkg/metrics"
	loggingmw "github.com/micromart/services/pkg/middleware/logging"
	metricsmw "github.com/micromart/services/pkg/middleware/metrics"
	"github.com/micromart/services/pkg/peerclient"

	ordercfg "github.com/micromart/services/services/order/internal/config"
	"github.com/micromart/services/services/order/internal/httpserver"
	"github.com/micromart/services/services/order/internal/models"
	"github.com/micromart/services/services/order/internal/repo"
	"github.com/micromart/services/services/order/internal/service"
)

func main() {
	if err := godotenv.Load("services/order/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	m := metrics.NewRegistry(cfg.ServiceName)

	var store cache.Store
	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cfg.RedisAddr, cfg.ServiceName, m.CacheHits, m.CacheMisses)
	} else {
		store = cache.NewTTLStore(m.CacheHits, m.CacheMisses)
	}

	peerLatency := promauto.With(m.Registerer()).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peer_request_duration_seconds",
		Help:    "Latency of synchronous calls to peer services.",
		Buckets: metrics.DurationBuckets,
	}, []string{"service", "endpoint"})

	users := peerclient.New(cfg.UserServiceURL, "user-service", peerLatency)
	products := peerclient.New(cfg.ProductServiceURL, "product-service", peerLatency)

	producer := events.NewProducer(cfg.KafkaBrokers, "order_events")
	defer producer.Close()

	svc := &service.OrderService{
		Repo:     &repo.GormRepo{DB: db},
		Cache:    store,
		CacheTTL: cfg.CacheTTL,
		Users:    users,
		Products: products,
		Pay:      service.SimulatedPayment(),
		Created: promauto.With(m.Registerer()).NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total orders successfully created.",
		}),
		PaymentFailures: promauto.With(m.Registerer()).NewCounter(prometheus.CounterOpts{
			Name: "order_payment_failures_total",
			Help: "Total simulated payment failures.",
		}),
		Revenue: promauto.With(m.Registerer()).NewCounter(prometheus.CounterOpts{
			Name: "order_revenue_total",
			Help: "Running total of order amounts.",
		}),
		Processing: promauto.With(m.Registerer()).NewHistogram(prometheus.HistogramOpts{
			Name:    "order_processing_seconds",
			Help:    "End-to-end order creation time including peer calls and payment.",
			Buckets: metrics.DurationBuckets,
		}),
		Events: producer,
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.Handler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(metricsmw.RequestMetrics(m))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: &httpserver.OrderHTTP{Svc: svc},
		HealthHandler: health.NewHandler(cfg.ServiceName, db, map[string]*peerclient.Client{
			"user-service":    users,
			"product-service": products,
		}),
		Metrics: m,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Printf("%s stopped", cfg.ServiceName)
}
