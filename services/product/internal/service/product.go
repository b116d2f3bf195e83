package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/cache"
	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/pkg/pagination"
	"github.com/micromart/services/services/product/internal/models"
	"github.com/micromart/services/services/product/internal/repo"
	"github.com/micromart/services/services/product/internal/search"
	"github.com/micromart/services/services/product/internal/transport"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrInsufficientStock = errors.New("insufficient stock") // 400
	ErrSearchUnavailable = errors.New("search unavailable") // 503
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type ProductService struct {
	Repo     *repo.GormRepo
	Cache    cache.Store
	CacheTTL time.Duration

	ES *elasticsearch.Client

	Created   prometheus.Counter
	Purchases *prometheus.CounterVec

	Events EventPublisher
}

type ListResult struct {
	Data []models.Product `json:"data"`
	Meta pagination.Meta  `json:"meta"`
}

func (s *ProductService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be >= 0", ErrValidation)
	}

	product := &models.Product{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		Description: req.Description,
	}

	if err := s.Repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	if s.Created != nil {
		s.Created.Inc()
	}
	s.Cache.Clear()

	l := logging.FromContext(ctx)
	if s.ES != nil {
		if err := search.IndexProduct(ctx, s.ES, product); err != nil {
			l.Warn("index product failed", "product_id", product.ID, "error", err)
		}
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, product.ID, map[string]any{
			"type":      "product_created",
			"productID": product.ID,
			"name":      product.Name,
		}); err != nil {
			l.Warn("publish product_created failed", "error", err)
		}
	}

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	key := "product:" + id
	if b, ok := s.Cache.Get(key); ok {
		var p models.Product
		if err := json.Unmarshal(b, &p); err == nil {
			return &p, nil
		}
	}

	product, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return nil, err
	}

	if b, err := json.Marshal(product); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, page, limit int, category string) (*ListResult, error) {
	offset, limit := pagination.Calculate(page, limit)
	key := fmt.Sprintf("products:page=%d&limit=%d&category=%s", page, limit, category)

	if b, ok := s.Cache.Get(key); ok {
		var res ListResult
		if err := json.Unmarshal(b, &res); err == nil {
			return &res, nil
		}
	}

	total, items, err := s.Repo.ListProducts(ctx, category, offset, limit)
	if err != nil {
		return nil, err
	}

	res := &ListResult{
		Data: items,
		Meta: pagination.NewMeta(page, limit, total),
	}
	if b, err := json.Marshal(res); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return res, nil
}

func (s *ProductService) SetStock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}

	product, err := s.Repo.SetStock(ctx, id, quantity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return nil, err
	}

	s.Cache.Clear()
	s.indexUpdated(ctx, product)
	return product, nil
}

// Purchase decrements stock through a single conditional UPDATE so the
// check-then-write cannot oversell under concurrent requests.
func (s *ProductService) Purchase(ctx context.Context, id string, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	}

	product, err := s.Repo.DecrementStock(ctx, id, quantity)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
		case errors.Is(err, repo.ErrInsufficientStock):
			s.countPurchase("insufficient_stock")
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
		default:
			return nil, err
		}
	}

	s.countPurchase("success")
	s.Cache.Clear()
	s.indexUpdated(ctx, product)
	return product, nil
}

func (s *ProductService) countPurchase(outcome string) {
	if s.Purchases != nil {
		s.Purchases.WithLabelValues(outcome).Inc()
	}
}

func (s *ProductService) indexUpdated(ctx context.Context, product *models.Product) {
	if s.ES == nil {
		return
	}
	if err := search.IndexProduct(ctx, s.ES, product); err != nil {
		logging.FromContext(ctx).Warn("reindex product failed", "product_id", product.ID, "error", err)
	}
}

type AnalyticsSummary struct {
	Categories    []repo.CategorySummary `json:"categories"`
	TotalProducts int64                  `json:"total_products"`
	TotalStock    int64                  `json:"total_stock"`
}

func (s *ProductService) Summary(ctx context.Context) (*AnalyticsSummary, error) {
	key := "products:analytics:summary"
	if b, ok := s.Cache.Get(key); ok {
		var res AnalyticsSummary
		if err := json.Unmarshal(b, &res); err == nil {
			return &res, nil
		}
	}

	rows, err := s.Repo.CategorySummaries(ctx)
	if err != nil {
		return nil, err
	}

	res := &AnalyticsSummary{Categories: rows}
	for _, row := range rows {
		res.TotalProducts += row.Products
		res.TotalStock += row.TotalStock
	}

	if b, err := json.Marshal(res); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return res, nil
}

func (s *ProductService) Search(ctx context.Context, query string, page, limit int) (*ListResult, error) {
	if s.ES == nil {
		return nil, ErrSearchUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: missing fields: q", ErrValidation)
	}

	offset, limit := pagination.Calculate(page, limit)
	total, items, err := search.Search(ctx, s.ES, query, offset, limit)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Data: items,
		Meta: pagination.NewMeta(page, limit, total),
	}, nil
}
