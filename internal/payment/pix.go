package payment

import (
	"context"
	"fmt"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// Validade da cobrança PIX.
const chargeTTL = 30 * time.Minute

// PixGenerator pede uma cobrança PIX ao Mercado Pago e registra a
// referência devolvida contra o pedido. Best-effort no nível do pipeline:
// uma falha aqui é logada e não desfaz o pedido já criado.
type PixGenerator struct {
	DB  *gorm.DB
	cfg *mpconfig.Config
}

// NewPixGenerator monta o gerador com o access token da plataforma.
func NewPixGenerator(db *gorm.DB, accessToken string) (*PixGenerator, error) {
	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("falha ao configurar Mercado Pago: %w", err)
	}
	return &PixGenerator{DB: db, cfg: cfg}, nil
}

// CreateCharge gera o PIX do pedido e persiste a cobrança pendente.
func (g *PixGenerator) CreateCharge(ctx context.Context, order *model.Order, payerName string) (*model.PaymentCharge, error) {
	client := mppayment.NewClient(g.cfg)

	request := mppayment.Request{
		TransactionAmount: order.Total,
		Description:       fmt.Sprintf("Pedido %s", order.OrderNumber),
		PaymentMethodID:   "pix",
		ExternalReference: order.OrderNumber,
		Payer: &mppayment.PayerRequest{
			// o provedor exige e-mail do pagador; clientes de WhatsApp não
			// têm e-mail, então vai um endereço sintético por cliente
			Email:     fmt.Sprintf("cliente.%d@pedidos.invalid", order.CustomerID),
			FirstName: payerName,
		},
	}

	resource, err := client.Create(ctx, request)
	if err != nil {
		return nil, apperr.External("mercadopago", err)
	}
	if resource.Status != "pending" {
		return nil, apperr.External("mercadopago",
			fmt.Errorf("status inesperado ao gerar PIX: %s", resource.Status))
	}

	providerID := int64(resource.ID)
	charge := model.PaymentCharge{
		OrderID:           order.ID,
		Provider:          "mercadopago",
		ProviderPaymentID: &providerID,
		Amount:            order.Total,
		QRCode:            resource.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      resource.PointOfInteraction.TransactionData.QRCodeBase64,
		Status:            model.ChargePending,
		ExpiresAt:         time.Now().Add(chargeTTL),
	}
	if err := g.DB.Create(&charge).Error; err != nil {
		return nil, err
	}
	return &charge, nil
}

// MarkPaid confirma o pagamento de uma cobrança pelo id do provedor e
// avança o pedido para payment_confirmed.
func (g *PixGenerator) MarkPaid(providerPaymentID int64) error {
	var charge model.PaymentCharge
	if err := g.DB.Where("provider_payment_id = ?", providerPaymentID).First(&charge).Error; err != nil {
		return err
	}
	if charge.Status != model.ChargePending {
		return nil // callback repetido ou cobrança já resolvida
	}

	return g.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&charge).Update("status", model.ChargePaid).Error; err != nil {
			return err
		}
		return tx.Model(&model.Order{}).Where("id = ?", charge.OrderID).
			Update("status", model.StatusPagamentoConfirmado).Error
	})
}
