package model

import (
	"fmt"
	"time"
)

// Status possíveis de um carrinho. converted e abandoned são terminais.
const (
	CartActive    = "active"
	CartConverted = "converted"
	CartAbandoned = "abandoned"
)

// Cart é o carrinho de compras de um cliente. Só pode existir um carrinho
// ativo por (tenant, cliente) — mesmo truque de ActiveKey das conversas.
// Os totais denormalizados são sempre recalculados por inteiro a partir
// dos itens a cada mutação, nunca remendados incrementalmente.
type Cart struct {
	ID           uint    `gorm:"primaryKey"`
	TenantID     uint    `gorm:"not null;index"`
	CustomerID   uint    `gorm:"not null;index"`
	Status       string  `gorm:"type:varchar(20);not null;default:'active'"`
	ActiveKey    *string `gorm:"uniqueIndex"`
	Subtotal     float64 `gorm:"default:0"`
	Discount     float64 `gorm:"default:0"`
	ShippingCost float64 `gorm:"default:0"`
	Total        float64 `gorm:"default:0"`
	CouponID     *uint
	OrderID      *uint // preenchido na conversão, só para auditoria
	Items        []CartItem `gorm:"foreignKey:CartID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartActiveKey monta a chave do índice único de carrinho ativo.
func CartActiveKey(tenantID, customerID uint) string {
	return fmt.Sprintf("cart:%d:%d", tenantID, customerID)
}

// CartItem é uma linha do carrinho com snapshot de preço tirado na adição.
type CartItem struct {
	ID          uint    `gorm:"primaryKey"`
	CartID      uint    `gorm:"not null;index"`
	ProductID   uint    `gorm:"not null"`
	VariantID   string  `gorm:"size:50"`
	ProductName string  `gorm:"size:150"`
	UnitPrice   float64 `gorm:"not null"` // preço no momento da adição (importante!)
	Quantity    int     `gorm:"not null"`
	Subtotal    float64 `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status e tipos de cupom.
const (
	CouponActive  = "active"
	CouponUsed    = "used"
	CouponExpired = "expired"

	CouponPercent = "percent"
	CouponFixed   = "fixed"
)

// Coupon é um cupom de desconto de um tenant.
// O desconto é recalculado sobre o subtotal vigente na hora da aplicação.
type Coupon struct {
	ID        uint    `gorm:"primaryKey"`
	TenantID  uint    `gorm:"not null;uniqueIndex:idx_coupon_tenant_code"`
	Code      string  `gorm:"not null;size:50;uniqueIndex:idx_coupon_tenant_code"`
	Type      string  `gorm:"type:varchar(10);not null"`
	Value     float64 `gorm:"not null"`
	Status    string  `gorm:"type:varchar(10);not null;default:'active'"`
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
