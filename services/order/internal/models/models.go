package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   string  `gorm:"index;not null"           json:"-"`
	ProductID string  `gorm:"not null"                 json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `gorm:"not null"                 json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type Order struct {
	ID              string      `gorm:"primaryKey"                                        json:"id"`
	UserID          string      `gorm:"index:idx_orders_user_created,priority:1;not null" json:"user_id"`
	Items           []OrderItem `gorm:"foreignKey:OrderID"                                json:"items"`
	TotalAmount     float64     `gorm:"not null"                                          json:"total_amount"`
	Currency        string      `gorm:"not null;default:USD"                              json:"currency"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	Status          string      `gorm:"not null"                                          json:"status"`
	CreatedAt       time.Time   `gorm:"index:idx_orders_user_created,priority:2"          json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
