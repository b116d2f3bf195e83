package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/micromart/services/services/product/internal/models"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GormRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, category string, offset, limit int) (int64, []models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{})
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) SetStock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", quantity)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetProduct(ctx, id)
}

// DecrementStock is the one genuine concurrency-safety mechanism here: the
// stock check and the write happen in a single conditional UPDATE, so two
// concurrent purchases can never drive stock negative.
func (r *GormRepo) DecrementStock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the product is missing or the guard failed; one extra read
		// tells the caller which.
		if _, err := r.GetProduct(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientStock
	}
	return r.GetProduct(ctx, id)
}

type CategorySummary struct {
	Category   string  `json:"category"`
	Products   int64   `json:"products"`
	TotalStock int64   `json:"total_stock"`
	AvgPrice   float64 `json:"avg_price"`
}

func (r *GormRepo) CategorySummaries(ctx context.Context) ([]CategorySummary, error) {
	var rows []CategorySummary
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Select("category, COUNT(*) AS products, COALESCE(SUM(stock), 0) AS total_stock, COALESCE(AVG(price), 0) AS avg_price").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
