package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// openTestDB abre um SQLite em memória com o schema completo.
// Uma conexão só: bancos em memória do SQLite são por conexão.
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
		&model.Tenant{}, &model.TenantNumber{}, &model.Subscription{},
		&model.Customer{}, &model.Conversation{}, &model.Message{},
		&model.Product{}, &model.Cart{}, &model.CartItem{}, &model.Coupon{},
		&model.Order{}, &model.OrderItem{}, &model.PaymentCharge{},
		&model.Appointment{}, &model.QueuedTask{},
	))
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) *model.Tenant {
	t.Helper()
	tenant := model.Tenant{
		BusinessName:  "Loja Teste",
		AssistantName: "Ana",
		OpenHour:      "09:00",
		CloseHour:     "18:00",
	}
	require.NoError(t, db.Create(&tenant).Error)
	return &tenant
}

func seedCustomer(t *testing.T, db *gorm.DB, tenantID uint) *model.Customer {
	t.Helper()
	customer := model.Customer{TenantID: tenantID, Phone: "5511999990000", Name: "João"}
	require.NoError(t, db.Create(&customer).Error)
	return &customer
}

func seedProduct(t *testing.T, db *gorm.DB, tenantID uint, name string, price float64, stock int) *model.Product {
	t.Helper()
	product := model.Product{
		TenantID:      tenantID,
		Name:          name,
		Price:         price,
		Active:        true,
		TrackStock:    stock >= 0,
		StockQuantity: stock,
	}
	if stock < 0 {
		product.TrackStock = false
		product.StockQuantity = 0
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func seedConversation(t *testing.T, db *gorm.DB, tenantID uint, customerID uint, phone string) *model.Conversation {
	t.Helper()
	key := model.ConversationActiveKey(tenantID, phone)
	conv := model.Conversation{
		TenantID:   tenantID,
		CustomerID: &customerID,
		Phone:      phone,
		Status:     model.ConversationActive,
		ActiveKey:  &key,
	}
	require.NoError(t, db.Create(&conv).Error)
	return &conv
}
