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

	"github.com/elastic/go-elasticsearch/v9"
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

	productcfg "github.com/micromart/services/services/product/internal/config"
	"github.com/micromart/services/services/product/internal/httpserver"
	"github.com/micromart/services/services/product/internal/models"
	"github.com/micromart/services/services/product/internal/repo"
	"github.com/micromart/services/services/product/internal/search"
	"github.com/micromart/services/services/product/internal/service"
)

func main() {
	if err := godotenv.Load("services/product/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := productcfg.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
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

	var esClient *elasticsearch.Client
	if cfg.ESURL != "" {
		esClient, err = search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
	}

	producer := events.NewProducer(cfg.KafkaBrokers, "product_events")
	defer producer.Close()

	svc := &service.ProductService{
		Repo:     &repo.GormRepo{DB: db},
		Cache:    store,
		CacheTTL: cfg.CacheTTL,
		ES:       esClient,
		Created: promauto.With(m.Registerer()).NewCounter(prometheus.CounterOpts{
			Name: "products_created_total",
			Help: "Total products created.",
		}),
		Purchases: promauto.With(m.Registerer()).NewCounterVec(prometheus.CounterOpts{
			Name: "product_purchases_total",
			Help: "Purchase attempts by outcome.",
		}, []string{"outcome"}),
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
		ProductHandler: &httpserver.ProductHTTP{Svc: svc},
		HealthHandler:  health.NewHandler(cfg.ServiceName, db, nil),
		Metrics:        m,
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
