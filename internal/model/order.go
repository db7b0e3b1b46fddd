package model

import (
	"time"

	"gorm.io/gorm"
)

// StatusOrder define os possíveis status de um pedido.
type StatusOrder string

const (
	StatusPendentePagamento   StatusOrder = "pending_payment"
	StatusPagamentoConfirmado StatusOrder = "payment_confirmed"
	StatusProcessando         StatusOrder = "processing"
	StatusEnviado             StatusOrder = "shipped"
	StatusEntregue            StatusOrder = "delivered"
	StatusCancelado           StatusOrder = "cancelled"
	StatusReembolsado         StatusOrder = "refunded"
)

// Order representa um pedido criado a partir da conversão de um carrinho.
// Os fatos de negócio (totais, endereço) são congelados na criação.
type Order struct {
	ID          uint        `gorm:"primaryKey"`
	TenantID    uint        `gorm:"not null;index"`
	CustomerID  uint        `gorm:"not null;index"`
	CartID      uint        `gorm:"not null"` // referência fraca, só auditoria
	OrderNumber string      `gorm:"uniqueIndex;not null;size:40"`
	Status      StatusOrder `gorm:"type:varchar(25);not null;default:'pending_payment'"`
	Subtotal    float64     `gorm:"not null"`
	Discount    float64     `gorm:"default:0"`
	ShippingCost float64    `gorm:"default:0"`
	Total       float64     `gorm:"not null"`
	ShippingAddress string  `gorm:"type:text"`
	Notes       string      `gorm:"type:text"`
	Items       []OrderItem `gorm:"foreignKey:OrderID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// OrderItem é o snapshot imutável de um item do carrinho no momento da
// conversão. Precisa sobreviver à mutação ou exclusão do produto de origem.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey"`
	OrderID     uint    `gorm:"not null;index"`
	ProductID   uint    `gorm:"not null"`
	ProductName string  `gorm:"not null;size:150"`
	SKU         string  `gorm:"size:50"`
	VariantName string  `gorm:"size:100"`
	UnitPrice   float64 `gorm:"not null"` // preço no momento da compra (importante!)
	Quantity    int     `gorm:"not null"`
	Subtotal    float64 `gorm:"not null"`
	CreatedAt   time.Time
}

// Status possíveis de uma cobrança.
const (
	ChargePending   = "pending"
	ChargePaid      = "paid"
	ChargeExpired   = "expired"
	ChargeCancelled = "cancelled"
)

// PaymentCharge é uma cobrança PIX gerada para um pedido.
type PaymentCharge struct {
	ID                uint    `gorm:"primaryKey"`
	OrderID           uint    `gorm:"not null;index"`
	Provider          string  `gorm:"size:30;default:'mercadopago'"`
	ProviderPaymentID *int64  `gorm:"uniqueIndex"`
	Amount            float64 `gorm:"not null"`
	QRCode            string  `gorm:"type:text"`
	QRCodeBase64      string  `gorm:"type:text"`
	Status            string  `gorm:"type:varchar(15);not null;default:'pending'"`
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
