package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

func TestResolveCustomerCreatesWithPlaceholderName(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Cliente 7777", customer.Name)
	assert.True(t, customer.OptIn, "primeiro contato implica opt-in")

	// segunda resolução devolve o mesmo cliente
	again, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "Maria", time.Now())
	require.NoError(t, err)
	assert.Equal(t, customer.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&model.Customer{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolveCustomerUsesProfileName(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "Maria Silva", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", customer.Name)
}

func TestResolveCustomerIsolatesTenants(t *testing.T) {
	db := openTestDB(t)
	tenantA := seedTenant(t, db)
	tenantB := model.Tenant{BusinessName: "Outra Loja"}
	require.NoError(t, db.Create(&tenantB).Error)

	resolver := NewResolverService(db)
	a, err := resolver.ResolveCustomer(tenantA.ID, "5511988887777", "", time.Now())
	require.NoError(t, err)
	b, err := resolver.ResolveCustomer(tenantB.ID, "5511988887777", "", time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID, "mesmo telefone em tenants diferentes são clientes distintos")
}

func TestResolveConversationReusesOpenConversation(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	now := time.Now()
	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "", now)
	require.NoError(t, err)

	first, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)
	second, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestWaitingHumanStillOccupiesActiveSlot(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	now := time.Now()
	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "", now)
	require.NoError(t, err)
	conv, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)

	require.NoError(t, resolver.TransferToHuman(conv.ID))

	// esperando humano não abre vaga; mensagens novas caem na mesma conversa
	same, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, same.ID)
	assert.Equal(t, model.ConversationWaitingHuman, same.Status)
}

func TestCloseConversationFreesSlotForNewOne(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	now := time.Now()
	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "", now)
	require.NoError(t, err)
	conv, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)

	require.NoError(t, resolver.CloseConversation(conv.ID))

	fresh, err := resolver.ResolveConversation(tenant.ID, customer.Phone, customer, now)
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
	assert.Equal(t, model.ConversationActive, fresh.Status)

	var closed model.Conversation
	require.NoError(t, db.First(&closed, conv.ID).Error)
	assert.Equal(t, model.ConversationClosed, closed.Status)
	assert.Nil(t, closed.ActiveKey)
}

func TestResolveConversationBackfillsLegacyCustomerLink(t *testing.T) {
	db := openTestDB(t)
	tenant := seedTenant(t, db)
	resolver := NewResolverService(db)

	key := model.ConversationActiveKey(tenant.ID, "5511988887777")
	legacy := model.Conversation{
		TenantID:  tenant.ID,
		Phone:     "5511988887777",
		Status:    model.ConversationActive,
		ActiveKey: &key,
	}
	require.NoError(t, db.Create(&legacy).Error)

	customer, err := resolver.ResolveCustomer(tenant.ID, "5511988887777", "", time.Now())
	require.NoError(t, err)
	conv, err := resolver.ResolveConversation(tenant.ID, "5511988887777", customer, time.Now())
	require.NoError(t, err)

	assert.Equal(t, legacy.ID, conv.ID)
	require.NotNil(t, conv.CustomerID)
	assert.Equal(t, customer.ID, *conv.CustomerID)
}
