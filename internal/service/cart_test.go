package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

func TestAddItemMergesSameLine(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta Azul", 49.90, 50)

	carts := NewCartService(db)

	cart, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = carts.AddItem(tenant.ID, customer.ID, product.ID, "", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "mesma linha deve ser mesclada, não duplicada")
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.InDelta(t, 5*49.90, cart.Items[0].Subtotal, 0.001)
	assert.InDelta(t, 5*49.90, cart.Subtotal, 0.001)
}

func TestAddItemRejectsInsufficientStockOnMergedQuantity(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Caneca", 25.00, 5)

	carts := NewCartService(db)

	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 4)
	require.NoError(t, err)

	// 4 já no carrinho + 3 novos = 7 > 5 em estoque
	_, err = carts.AddItem(tenant.ID, customer.ID, product.ID, "", 3)
	require.Error(t, err)
	v, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, 5, v.Details["disponivel"])
	assert.Equal(t, 7, v.Details["solicitado"])

	// a falha não pode ter escrito nada
	cart, err := carts.GetActive(tenant.ID, customer.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

func TestAddItemCreatesCartOutsideMutationTransaction(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Caneca", 25.00, 5)

	carts := NewCartService(db)

	// primeira mutação falha na validação; a criação preguiçosa do
	// carrinho roda em auto-commit, antes da transação, e sobrevive
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 9)
	require.Error(t, err)

	cart, err := carts.GetActive(tenant.ID, customer.ID)
	require.NoError(t, err)
	require.NotNil(t, cart, "o carrinho vazio criado antes da transação fica de pé")
	assert.Empty(t, cart.Items)

	// e a mutação seguinte reaproveita a mesma vaga de ativo
	updated, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, updated.ID)
}

func TestAddItemRespectsMaxPerOrder(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Edição Limitada", 120.00, 100)
	require.NoError(t, db.Model(product).Update("max_per_order", 2).Error)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 3)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestCartTotalsInvariantAfterEachMutation(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	shirt := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)
	mug := seedProduct(t, db, tenant.ID, "Caneca", 20.00, 100)

	carts := NewCartService(db)

	checkInvariant := func(cart *model.Cart) {
		t.Helper()
		assert.InDelta(t, cart.Subtotal-cart.Discount+cart.ShippingCost, cart.Total, 0.001)
	}

	cart, err := carts.AddItem(tenant.ID, customer.ID, shirt.ID, "", 2)
	require.NoError(t, err)
	checkInvariant(cart)

	cart, err = carts.AddItem(tenant.ID, customer.ID, mug.ID, "", 1)
	require.NoError(t, err)
	checkInvariant(cart)
	assert.InDelta(t, 120.00, cart.Subtotal, 0.001)

	cart, err = carts.UpdateQuantity(tenant.ID, customer.ID, shirt.ID, "", 1)
	require.NoError(t, err)
	checkInvariant(cart)
	assert.InDelta(t, 70.00, cart.Subtotal, 0.001)

	cart, err = carts.RemoveItem(tenant.ID, customer.ID, mug.ID, "")
	require.NoError(t, err)
	checkInvariant(cart)
	assert.InDelta(t, 50.00, cart.Subtotal, 0.001)

	cart, err = carts.Clear(tenant.ID, customer.ID)
	require.NoError(t, err)
	checkInvariant(cart)
	assert.Zero(t, cart.Subtotal)
	assert.Zero(t, cart.Total)
}

func TestApplyCouponRecomputesOverCurrentSubtotal(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)

	coupon := model.Coupon{
		TenantID: tenant.ID, Code: "DEZ10",
		Type: model.CouponPercent, Value: 10, Status: model.CouponActive,
	}
	require.NoError(t, db.Create(&coupon).Error)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)

	cart, err := carts.ApplyCoupon(tenant.ID, customer.ID, "DEZ10")
	require.NoError(t, err)
	assert.InDelta(t, 10.00, cart.Discount, 0.001)
	assert.InDelta(t, 90.00, cart.Total, 0.001)

	// o desconto acompanha mutações posteriores do carrinho
	cart, err = carts.AddItem(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)
	assert.InDelta(t, 200.00, cart.Subtotal, 0.001)
	assert.InDelta(t, 20.00, cart.Discount, 0.001)
	assert.InDelta(t, 180.00, cart.Total, 0.001)
}

func TestApplyCouponFixedCappedAtSubtotal(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Chaveiro", 8.00, 100)

	coupon := model.Coupon{
		TenantID: tenant.ID, Code: "VINTE",
		Type: model.CouponFixed, Value: 20, Status: model.CouponActive,
	}
	require.NoError(t, db.Create(&coupon).Error)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 1)
	require.NoError(t, err)

	cart, err := carts.ApplyCoupon(tenant.ID, customer.ID, "VINTE")
	require.NoError(t, err)
	assert.InDelta(t, 8.00, cart.Discount, 0.001, "desconto nunca passa do subtotal")
	assert.Zero(t, cart.Total)
}

func TestApplyCouponRejectsExpired(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)

	past := time.Now().Add(-time.Hour)
	coupon := model.Coupon{
		TenantID: tenant.ID, Code: "VELHO",
		Type: model.CouponPercent, Value: 10,
		Status: model.CouponActive, ExpiresAt: &past,
	}
	require.NoError(t, db.Create(&coupon).Error)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 1)
	require.NoError(t, err)

	_, err = carts.ApplyCoupon(tenant.ID, customer.ID, "VELHO")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	// a expiração foi persistida na passagem
	var reloaded model.Coupon
	require.NoError(t, db.First(&reloaded, coupon.ID).Error)
	assert.Equal(t, model.CouponExpired, reloaded.Status)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)

	cart, err := carts.UpdateQuantity(tenant.ID, customer.ID, product.ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Subtotal)
}

func TestAddItemUsesVariantPrice(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)
	require.NoError(t, db.Model(product).
		Update("variants", []byte(`[{"id":"gg","name":"Tamanho GG","price":55.0}]`)).Error)

	carts := NewCartService(db)
	cart, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "gg", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.InDelta(t, 55.00, cart.Items[0].UnitPrice, 0.001)

	_, err = carts.AddItem(tenant.ID, customer.ID, product.ID, "nao-existe", 1)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestCartPriceSnapshotSurvivesPriceChange(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	customer := seedCustomer(t, db, tenant.ID)
	product := seedProduct(t, db, tenant.ID, "Camiseta", 50.00, 100)

	carts := NewCartService(db)
	_, err := carts.AddItem(tenant.ID, customer.ID, product.ID, "", 1)
	require.NoError(t, err)

	require.NoError(t, db.Model(product).Update("price", 80.00).Error)

	// linha existente mantém o preço da adição; linha nova pega o vigente
	cart, err := carts.UpdateQuantity(tenant.ID, customer.ID, product.ID, "", 2)
	require.NoError(t, err)
	assert.InDelta(t, 50.00, cart.Items[0].UnitPrice, 0.001)
	assert.InDelta(t, 100.00, cart.Subtotal, 0.001)
}
