package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// CartService é o dono do carrinho ativo de cada (tenant, cliente).
// Toda mutação roda numa transação única e termina recalculando os totais
// por inteiro a partir dos itens — nunca remendo incremental.
type CartService struct {
	DB *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{DB: db}
}

// getOrCreateActiveCart busca o carrinho ativo, criando preguiçosamente na
// primeira mutação. Roda em auto-commit, fora da transação de mutação:
// no Postgres um INSERT que viola o índice único aborta a transação
// inteira, e a recuperação da corrida (buscar o carrinho que o
// concorrente criou) precisa de uma conexão ainda utilizável.
func (s *CartService) getOrCreateActiveCart(tenantID, customerID uint) (*model.Cart, error) {
	key := model.CartActiveKey(tenantID, customerID)

	var cart model.Cart
	err := s.DB.Where("active_key = ?", key).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = model.Cart{
		TenantID:   tenantID,
		CustomerID: customerID,
		Status:     model.CartActive,
		ActiveKey:  &key,
	}
	if err := s.DB.Create(&cart).Error; err != nil {
		if isUniqueViolation(err) {
			// alguém criou primeiro: busca de novo
			if err2 := s.DB.Where("active_key = ?", key).First(&cart).Error; err2 != nil {
				return nil, err2
			}
			return &cart, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetActive devolve o carrinho ativo com itens, ou nil se não há.
func (s *CartService) GetActive(tenantID, customerID uint) (*model.Cart, error) {
	key := model.CartActiveKey(tenantID, customerID)
	var cart model.Cart
	err := s.DB.Preload("Items").Where("active_key = ?", key).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adiciona (ou mescla) um item no carrinho ativo. O preço é sempre
// relido do banco — nunca confia em preço vindo do chamador. Valida produto
// ativo, estoque rastreado e máximo por pedido.
func (s *CartService) AddItem(tenantID, customerID, productID uint, variantID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, apperr.NewValidation("quantidade", "a quantidade deve ser pelo menos 1")
	}

	created, err := s.getOrCreateActiveCart(tenantID, customerID)
	if err != nil {
		return nil, err
	}

	var result *model.Cart
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.Where("id = ? AND tenant_id = ? AND active = ?", productID, tenantID, true).
			First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NewValidation("produto", "produto não encontrado ou indisponível")
			}
			return err
		}

		// recarrega os itens dentro da transação de mutação
		var cart model.Cart
		if err := tx.Preload("Items").First(&cart, created.ID).Error; err != nil {
			return err
		}

		// quantidade final da linha depois da mesclagem
		newQty := quantity
		var existing *model.CartItem
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID && cart.Items[i].VariantID == variantID {
				existing = &cart.Items[i]
				newQty = existing.Quantity + quantity
				break
			}
		}

		if product.TrackStock && product.StockQuantity < newQty {
			return &apperr.ValidationError{
				Field:   "estoque",
				Message: fmt.Sprintf("estoque insuficiente para %s", product.Name),
				Details: map[string]any{
					"produto":    product.Name,
					"disponivel": product.StockQuantity,
					"solicitado": newQty,
				},
			}
		}
		if product.MaxPerOrder > 0 && newQty > product.MaxPerOrder {
			return &apperr.ValidationError{
				Field:   "quantidade",
				Message: fmt.Sprintf("máximo de %d unidade(s) de %s por pedido", product.MaxPerOrder, product.Name),
			}
		}

		unitPrice, variantName := resolvePrice(&product, variantID)
		if variantID != "" && variantName == "" {
			return apperr.NewValidation("variante", "variante não encontrada para este produto")
		}

		if existing != nil {
			existing.Quantity = newQty
			existing.Subtotal = float64(newQty) * existing.UnitPrice
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
		} else {
			item := model.CartItem{
				CartID:      cart.ID,
				ProductID:   productID,
				VariantID:   variantID,
				ProductName: product.Name,
				UnitPrice:   unitPrice,
				Quantity:    quantity,
				Subtotal:    float64(quantity) * unitPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		updated, err := s.recomputeTotals(tx, cart.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// resolvePrice devolve o preço vigente, considerando a variante quando ela
// define preço próprio, e o nome da variante (vazio se não achada).
func resolvePrice(product *model.Product, variantID string) (float64, string) {
	if variantID == "" {
		return product.Price, ""
	}
	var variants []model.ProductVariant
	if len(product.Variants) > 0 {
		_ = json.Unmarshal(product.Variants, &variants)
	}
	for _, v := range variants {
		if v.ID == variantID {
			if v.Price > 0 {
				return v.Price, v.Name
			}
			return product.Price, v.Name
		}
	}
	return product.Price, ""
}

// RemoveItem remove uma linha do carrinho ativo.
func (s *CartService) RemoveItem(tenantID, customerID, productID uint, variantID string) (*model.Cart, error) {
	var result *model.Cart
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := s.requireActiveCart(tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ? AND product_id = ? AND variant_id = ?",
			cart.ID, productID, variantID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		updated, err := s.recomputeTotals(tx, cart.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// UpdateQuantity ajusta a quantidade de uma linha; 0 remove a linha.
func (s *CartService) UpdateQuantity(tenantID, customerID, productID uint, variantID string, quantity int) (*model.Cart, error) {
	if quantity < 0 {
		return nil, apperr.NewValidation("quantidade", "quantidade não pode ser negativa")
	}
	if quantity == 0 {
		return s.RemoveItem(tenantID, customerID, productID, variantID)
	}

	var result *model.Cart
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := s.requireActiveCart(tx, tenantID, customerID)
		if err != nil {
			return err
		}

		var item model.CartItem
		if err := tx.Where("cart_id = ? AND product_id = ? AND variant_id = ?",
			cart.ID, productID, variantID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NewValidation("item", "item não está no carrinho")
			}
			return err
		}

		var product model.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			return err
		}
		if product.TrackStock && product.StockQuantity < quantity {
			return &apperr.ValidationError{
				Field:   "estoque",
				Message: fmt.Sprintf("estoque insuficiente para %s", product.Name),
				Details: map[string]any{"disponivel": product.StockQuantity, "solicitado": quantity},
			}
		}

		item.Quantity = quantity
		item.Subtotal = float64(quantity) * item.UnitPrice
		if err := tx.Save(&item).Error; err != nil {
			return err
		}

		updated, err := s.recomputeTotals(tx, cart.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// ApplyCoupon aplica um cupom ao carrinho ativo. O desconto é recalculado
// sobre o subtotal vigente na aplicação, não sobre o da emissão do cupom.
func (s *CartService) ApplyCoupon(tenantID, customerID uint, code string) (*model.Cart, error) {
	var result *model.Cart
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := s.requireActiveCart(tx, tenantID, customerID)
		if err != nil {
			return err
		}

		var coupon model.Coupon
		if err := tx.Where("tenant_id = ? AND code = ?", tenantID, code).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NewValidation("cupom", "cupom não encontrado")
			}
			return err
		}
		if coupon.Status != model.CouponActive {
			return apperr.NewValidation("cupom", "este cupom não está mais válido")
		}
		if coupon.ExpiresAt != nil && time.Now().After(*coupon.ExpiresAt) {
			tx.Model(&coupon).Update("status", model.CouponExpired)
			return apperr.NewValidation("cupom", "este cupom está expirado")
		}

		if err := tx.Model(&model.Cart{}).Where("id = ?", cart.ID).
			Update("coupon_id", coupon.ID).Error; err != nil {
			return err
		}

		updated, err := s.recomputeTotals(tx, cart.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// Clear esvazia o carrinho ativo.
func (s *CartService) Clear(tenantID, customerID uint) (*model.Cart, error) {
	var result *model.Cart
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := s.requireActiveCart(tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Cart{}).Where("id = ?", cart.ID).
			Update("coupon_id", nil).Error; err != nil {
			return err
		}
		updated, err := s.recomputeTotals(tx, cart.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// requireActiveCart é como getOrCreateActiveCart mas falha se não existir.
func (s *CartService) requireActiveCart(tx *gorm.DB, tenantID, customerID uint) (*model.Cart, error) {
	key := model.CartActiveKey(tenantID, customerID)
	var cart model.Cart
	if err := tx.Where("active_key = ?", key).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewValidation("carrinho", "não há carrinho ativo")
		}
		return nil, err
	}
	return &cart, nil
}

// recomputeTotals recarrega os itens e refaz subtotal/desconto/frete/total
// do zero. Invariante: total = subtotal - desconto + frete, sempre.
func (s *CartService) recomputeTotals(tx *gorm.DB, cartID uint) (*model.Cart, error) {
	var cart model.Cart
	if err := tx.Preload("Items").First(&cart, cartID).Error; err != nil {
		return nil, err
	}

	var subtotal float64
	for _, item := range cart.Items {
		subtotal += item.Subtotal
	}

	var discount float64
	if cart.CouponID != nil {
		var coupon model.Coupon
		if err := tx.First(&coupon, *cart.CouponID).Error; err == nil && coupon.Status == model.CouponActive {
			switch coupon.Type {
			case model.CouponPercent:
				discount = subtotal * coupon.Value / 100
			case model.CouponFixed:
				discount = coupon.Value
			}
			if discount > subtotal {
				discount = subtotal
			}
		}
	}

	cart.Subtotal = subtotal
	cart.Discount = discount
	cart.Total = subtotal - discount + cart.ShippingCost

	if err := tx.Model(&model.Cart{}).Where("id = ?", cart.ID).Updates(map[string]any{
		"subtotal": cart.Subtotal,
		"discount": cart.Discount,
		"total":    cart.Total,
	}).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}
