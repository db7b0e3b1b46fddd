package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Order{}, &model.OrderItem{}, &model.PaymentCharge{},
	))
	return db
}

func TestMarkPaidConfirmsChargeAndOrder(t *testing.T) {
	db := openTestDB(t)

	order := model.Order{
		TenantID: 1, CustomerID: 1, OrderNumber: "PED-1",
		Status: model.StatusPendentePagamento, Total: 100,
	}
	require.NoError(t, db.Create(&order).Error)

	providerID := int64(987654)
	charge := model.PaymentCharge{
		OrderID: order.ID, Provider: "mercadopago",
		ProviderPaymentID: &providerID, Amount: 100,
		Status: model.ChargePending, ExpiresAt: time.Now().Add(chargeTTL),
	}
	require.NoError(t, db.Create(&charge).Error)

	g := &PixGenerator{DB: db}
	require.NoError(t, g.MarkPaid(providerID))

	var reloadedCharge model.PaymentCharge
	require.NoError(t, db.First(&reloadedCharge, charge.ID).Error)
	assert.Equal(t, model.ChargePaid, reloadedCharge.Status)

	var reloadedOrder model.Order
	require.NoError(t, db.First(&reloadedOrder, order.ID).Error)
	assert.Equal(t, model.StatusPagamentoConfirmado, reloadedOrder.Status)
}

func TestMarkPaidIsIdempotentOnRepeatedCallback(t *testing.T) {
	db := openTestDB(t)

	order := model.Order{
		TenantID: 1, CustomerID: 1, OrderNumber: "PED-2",
		Status: model.StatusPendentePagamento, Total: 50,
	}
	require.NoError(t, db.Create(&order).Error)

	providerID := int64(111222)
	charge := model.PaymentCharge{
		OrderID: order.ID, Provider: "mercadopago",
		ProviderPaymentID: &providerID, Amount: 50,
		Status: model.ChargePending, ExpiresAt: time.Now().Add(chargeTTL),
	}
	require.NoError(t, db.Create(&charge).Error)

	g := &PixGenerator{DB: db}
	require.NoError(t, g.MarkPaid(providerID))

	// o pedido andou por fora (ex: lojista marcou como processando)
	require.NoError(t, db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("status", model.StatusProcessando).Error)

	// callback repetido do provedor não regride o pedido
	require.NoError(t, g.MarkPaid(providerID))

	var reloadedOrder model.Order
	require.NoError(t, db.First(&reloadedOrder, order.ID).Error)
	assert.Equal(t, model.StatusProcessando, reloadedOrder.Status)
}

func TestMarkPaidUnknownProviderIDErrors(t *testing.T) {
	db := openTestDB(t)
	g := &PixGenerator{DB: db}
	assert.Error(t, g.MarkPaid(424242))
}
