package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID          string    `gorm:"primaryKey"        json:"id"`
	Name        string    `gorm:"not null"          json:"name"`
	Price       float64   `gorm:"not null"          json:"price"`
	Category    string    `gorm:"index;not null"    json:"category"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
