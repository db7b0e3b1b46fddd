package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// OrderService converte um carrinho ativo num pedido imutável.
// A finalização é uma transação única: revalida estoque com lock de linha,
// congela totais, copia os itens em snapshot profundo, baixa estoque e
// marca o carrinho como convertido. A cobrança e as notificações vêm
// depois do commit e são best-effort.
type OrderService struct {
	DB   *gorm.DB
	node *snowflake.Node
}

func NewOrderService(db *gorm.DB) (*OrderService, error) {
	// o nó snowflake garante números de pedido livres de colisão mesmo com
	// finalizações concorrentes — nada de aleatoriedade do lado do cliente
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	return &OrderService{DB: db, node: node}, nil
}

// nextOrderNumber gera um número de pedido único e legível.
func (s *OrderService) nextOrderNumber() string {
	return fmt.Sprintf("PED-%s", s.node.Generate().String())
}

// Finalize converte o carrinho ativo de (tenant, cliente) em pedido.
// Se a revalidação de estoque falhar em qualquer linha, a operação inteira
// aborta antes de qualquer escrita, com erro estruturado por produto.
func (s *OrderService) Finalize(tenantID, customerID uint, shippingAddress, notes string) (*model.Order, error) {
	var created *model.Order

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		key := model.CartActiveKey(tenantID, customerID)
		var cart model.Cart
		if err := tx.Preload("Items").Where("active_key = ?", key).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NewValidation("carrinho", "não há carrinho ativo para finalizar")
			}
			return err
		}
		if len(cart.Items) == 0 {
			return apperr.NewValidation("carrinho", "o carrinho está vazio")
		}

		// 1. revalida o estoque de cada linha com lock de linha no produto,
		// protegendo contra drift desde a adição dos itens
		products := make(map[uint]*model.Product, len(cart.Items))
		for _, item := range cart.Items {
			var product model.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, item.ProductID).Error; err != nil {
				return err
			}
			if !product.Active {
				return &apperr.ValidationError{
					Field:   "produto",
					Message: fmt.Sprintf("%s não está mais disponível", item.ProductName),
					Details: map[string]any{"produto": item.ProductName},
				}
			}
			if product.TrackStock && product.StockQuantity < item.Quantity {
				return &apperr.ValidationError{
					Field:   "estoque",
					Message: fmt.Sprintf("estoque insuficiente para %s", product.Name),
					Details: map[string]any{
						"produto":    product.Name,
						"disponivel": product.StockQuantity,
						"solicitado": item.Quantity,
					},
				}
			}
			products[item.ProductID] = &product
		}

		// 2–3. número único + pedido com totais copiados do carrinho
		order := model.Order{
			TenantID:        tenantID,
			CustomerID:      customerID,
			CartID:          cart.ID,
			OrderNumber:     s.nextOrderNumber(),
			Status:          model.StatusPendentePagamento,
			Subtotal:        cart.Subtotal,
			Discount:        cart.Discount,
			ShippingCost:    cart.ShippingCost,
			Total:           cart.Total,
			ShippingAddress: shippingAddress,
			Notes:           notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// 4. snapshot profundo dos itens — sobrevive a mutações do produto
		for _, item := range cart.Items {
			product := products[item.ProductID]
			orderItem := model.OrderItem{
				OrderID:     order.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				SKU:         product.SKU,
				VariantName: item.VariantID,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
				Subtotal:    item.Subtotal,
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, orderItem)

			// 5. baixa o estoque rastreado dentro da mesma transação
			if product.TrackStock {
				if err := tx.Model(&model.Product{}).Where("id = ?", product.ID).
					Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		// 6. marca o carrinho como convertido, liberando a vaga de ativo
		if err := tx.Model(&model.Cart{}).Where("id = ?", cart.ID).Updates(map[string]any{
			"status":     model.CartConverted,
			"active_key": nil,
			"order_id":   order.ID,
		}).Error; err != nil {
			return err
		}

		// cupom é queimado na conversão, não na aplicação — carrinho
		// abandonado não gasta cupom
		if cart.CouponID != nil {
			if err := tx.Model(&model.Coupon{}).Where("id = ?", *cart.CouponID).
				Update("status", model.CouponUsed).Error; err != nil {
				return err
			}
		}

		created = &order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Pedido %s criado (tenant %d, cliente %d, total %.2f)",
		created.OrderNumber, tenantID, customerID, created.Total)
	return created, nil
}

// UpdateStatus avança o status de um pedido. Estados terminais não mudam.
func (s *OrderService) UpdateStatus(orderID uint, newStatus model.StatusOrder) error {
	var order model.Order
	if err := s.DB.First(&order, orderID).Error; err != nil {
		return err
	}
	if order.Status == model.StatusCancelado || order.Status == model.StatusReembolsado {
		return apperr.NewValidation("status", "pedido em estado terminal não pode mudar")
	}
	return s.DB.Model(&order).Update("status", newStatus).Error
}
