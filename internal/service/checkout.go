package service

import (
	"context"
	"fmt"
	"log"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

// PixCharger gera a cobrança de um pedido recém-criado. Nil desliga a
// cobrança (provedor não configurado).
type PixCharger interface {
	CreateCharge(ctx context.Context, order *model.Order, payerName string) (*model.PaymentCharge, error)
}

// CheckoutService fecha o ciclo da finalização: converte o carrinho e roda
// o pós-commit — cobrança PIX e mensagens de confirmação e de pagamento —
// pela mesma porta tanto para a ferramenta de IA quanto para o RPC interno.
// O pós-commit é best-effort: falha é logada e o pedido fica de pé.
type CheckoutService struct {
	Orders   *OrderService
	Messages *MessageService
	Charges  PixCharger
}

func NewCheckoutService(orders *OrderService, messages *MessageService, charges PixCharger) *CheckoutService {
	return &CheckoutService{Orders: orders, Messages: messages, Charges: charges}
}

// FinalizeOutcome é o pedido criado mais a cobrança gerada (quando houve).
type FinalizeOutcome struct {
	Order  *model.Order
	Charge *model.PaymentCharge
}

// Finalize converte o carrinho ativo em pedido e, com o pedido já de pé,
// gera a cobrança e envia confirmação + instrução de pagamento pelo
// transporte do tenant. Sender nil pula só os envios.
func (s *CheckoutService) Finalize(ctx context.Context, tenant *model.Tenant, customer *model.Customer,
	conversationID uint, sender whatsapp.Sender, shippingAddress, notes string) (*FinalizeOutcome, error) {
	order, err := s.Orders.Finalize(tenant.ID, customer.ID, shippingAddress, notes)
	if err != nil {
		return nil, err
	}

	out := &FinalizeOutcome{Order: order}
	if s.Charges != nil {
		charge, err := s.Charges.CreateCharge(ctx, order, customer.Name)
		if err != nil {
			log.Printf("AVISO: falha ao gerar cobrança PIX do pedido %s: %v", order.OrderNumber, err)
		} else {
			out.Charge = charge
		}
	}

	if sender != nil {
		s.sendAndRecord(ctx, sender, tenant.ID, conversationID, customer.Phone,
			fmt.Sprintf("✅ Pedido %s confirmado! Total: R$ %.2f. Entrega em: %s.",
				order.OrderNumber, order.Total, order.ShippingAddress))
		if out.Charge != nil {
			s.sendAndRecord(ctx, sender, tenant.ID, conversationID, customer.Phone,
				fmt.Sprintf("Para pagar, use o PIX copia e cola abaixo (válido até %s):\n\n%s",
					out.Charge.ExpiresAt.Format("15:04"), out.Charge.QRCode))
		}
	}
	return out, nil
}

// sendAndRecord envia e grava a mensagem de saída do pedido. Falha de
// envio é logada e gravada como failed, nunca desfaz o pedido.
func (s *CheckoutService) sendAndRecord(ctx context.Context, sender whatsapp.Sender,
	tenantID, conversationID uint, phone, text string) {
	wamID, err := sender.SendText(ctx, phone, text)
	if err != nil {
		log.Printf("AVISO: falha ao enviar mensagem do pedido para %s: %v", phone, err)
	}
	if recErr := s.Messages.RecordOutbound(tenantID, conversationID, wamID, text, err); recErr != nil {
		log.Printf("AVISO: falha ao gravar mensagem de saída do pedido: %v", recErr)
	}
}
