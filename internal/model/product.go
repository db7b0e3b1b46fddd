package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product representa um produto do catálogo de um tenant.
type Product struct {
	ID            uint    `gorm:"primaryKey"`
	TenantID      uint    `gorm:"not null;index"`
	Name          string  `gorm:"not null;size:150"`
	Description   string  `gorm:"type:text"`
	Price         float64 `gorm:"not null"`
	SKU           string  `gorm:"size:50"`
	ImageURL      string  `gorm:"type:text"`
	Active        bool    `gorm:"default:true"`
	TrackStock    bool    `gorm:"default:false"`
	StockQuantity int     `gorm:"default:0"`
	MaxPerOrder   int     `gorm:"default:0"` // 0 = sem limite
	Variants      datatypes.JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// ProductVariant é uma variação de produto armazenada no JSON de Variants.
type ProductVariant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price,omitempty"` // 0 = usa o preço do produto
}
