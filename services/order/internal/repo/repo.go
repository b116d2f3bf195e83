package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/micromart/services/services/order/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").
		Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID, status string, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return 0, nil, err
	}

	return total, orders, nil
}

func (r *GormRepo) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetOrder(ctx, id)
}

// Revenue sums completed orders (delivered or shipped) created since the
// cutoff.
func (r *GormRepo) Revenue(ctx context.Context, since time.Time) (float64, int64, error) {
	var row struct {
		Revenue float64
		Orders  int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS orders").
		Where("status IN ?", []string{models.StatusDelivered, models.StatusShipped}).
		Where("created_at >= ?", since).
		Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return row.Revenue, row.Orders, nil
}

type TopProduct struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

func (r *GormRepo) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	var rows []TopProduct
	if err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Select("product_id, MAX(name) AS name, SUM(quantity) AS total_quantity, SUM(subtotal) AS total_revenue").
		Group("product_id").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
