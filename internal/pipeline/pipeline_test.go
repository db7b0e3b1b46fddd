package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/ai"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

// fakeSender grava tudo que o pipeline manda, sem rede.
type fakeSender struct {
	sent []string
	seq  int
}

func (f *fakeSender) SendText(_ context.Context, _, body string) (string, error) {
	f.sent = append(f.sent, body)
	f.seq++
	return fmt.Sprintf("wamid.FAKE%d", f.seq), nil
}

func (f *fakeSender) SendImage(_ context.Context, _, _, _ string) (string, error) {
	return "", nil
}

func (f *fakeSender) SendInteractiveButtons(_ context.Context, _, _ string, _ []whatsapp.Button) (string, error) {
	return "", nil
}

// fixedClient responde sempre o mesmo texto, sem ferramentas.
type fixedClient struct {
	reply string
	calls int
}

func (c *fixedClient) Chat(_ context.Context, _ *ai.ChatRequest) (*ai.ChatResponse, error) {
	c.calls++
	return &ai.ChatResponse{Content: c.reply}, nil
}

type pipeFixture struct {
	db       *gorm.DB
	pipe     *Pipeline
	sender   *fakeSender
	client   *fixedClient
	tenant   *model.Tenant
	customer *model.Customer
	conv     *model.Conversation
	messages *service.MessageService
}

func newPipeFixture(t *testing.T, subStatus string, subStart time.Time) *pipeFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Tenant{}, &model.Subscription{}, &model.Customer{},
		&model.Conversation{}, &model.Message{}, &model.Product{},
		&model.Cart{}, &model.CartItem{}, &model.Coupon{},
		&model.Order{}, &model.OrderItem{}, &model.Appointment{},
	))

	tenant := &model.Tenant{BusinessName: "Loja Demo", AssistantName: "Ana",
		OpenHour: "09:00", CloseHour: "18:00"}
	require.NoError(t, db.Create(tenant).Error)
	require.NoError(t, db.Create(&model.Subscription{
		TenantID: tenant.ID, Status: subStatus, StartDate: subStart,
		NextBillingDate: subStart.AddDate(0, 1, 0),
	}).Error)

	customer := &model.Customer{TenantID: tenant.ID, Phone: "5511999990000", Name: "João"}
	require.NoError(t, db.Create(customer).Error)

	key := model.ConversationActiveKey(tenant.ID, customer.Phone)
	conv := &model.Conversation{TenantID: tenant.ID, CustomerID: &customer.ID,
		Phone: customer.Phone, Status: model.ConversationActive, ActiveKey: &key}
	require.NoError(t, db.Create(conv).Error)

	messages := service.NewMessageService(db)
	carts := service.NewCartService(db)
	orders, err := service.NewOrderService(db)
	require.NoError(t, err)
	checkout := service.NewCheckoutService(orders, messages, nil)
	executor := ai.NewExecutor(db, carts, checkout,
		service.NewSchedulingService(db), service.NewResolverService(db))

	client := &fixedClient{reply: "Oi! Posso ajudar?"}
	sender := &fakeSender{}

	pipe := &Pipeline{
		DB:            db,
		Messages:      messages,
		Subscriptions: service.NewSubscriptionService(db),
		RateLimiter:   service.NewRateLimiter(messages, 10, 60*time.Second),
		Notices:       service.NewNoticeDeduper(nil),
		Orchestrator:  ai.NewOrchestrator(client, executor, 5),
		NewSender:     func(*model.Tenant) whatsapp.Sender { return sender },
	}

	return &pipeFixture{db: db, pipe: pipe, sender: sender, client: client,
		tenant: tenant, customer: customer, conv: conv, messages: messages}
}

// inbound grava uma mensagem recebida e monta a tarefa correspondente.
func (f *pipeFixture) inbound(t *testing.T, wamID, text string) *model.QueuedTask {
	t.Helper()
	msg := model.Message{
		TenantID: f.tenant.ID, ConversationID: f.conv.ID,
		WamID: wamID, Type: model.MessageText, Content: text,
	}
	_, err := f.messages.RecordInbound(&msg)
	require.NoError(t, err)

	payload, err := json.Marshal(ProcessMessagePayload{
		TenantID:       f.tenant.ID,
		ConversationID: f.conv.ID,
		CustomerID:     f.customer.ID,
		WamID:          wamID,
		Phone:          f.customer.Phone,
		Text:           text,
	})
	require.NoError(t, err)
	return &model.QueuedTask{TenantID: f.tenant.ID, Kind: model.TaskProcessMessage,
		DedupKey: wamID, Payload: payload}
}

func TestHandleProcessMessageRepliesAndPersistsContext(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionActive, time.Now().AddDate(0, -1, 0))

	task := f.inbound(t, "wamid.IN1", "oi")
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Oi! Posso ajudar?", f.sender.sent[0])

	// resposta gravada como outbound
	var out model.Message
	require.NoError(t, f.db.Where("direction = ?", model.DirectionOutbound).First(&out).Error)
	assert.Equal(t, "Oi! Posso ajudar?", out.Content)
	assert.Equal(t, model.StatusSent, out.Status)

	// contexto rolante persistido na conversa
	var conv model.Conversation
	require.NoError(t, f.db.First(&conv, f.conv.ID).Error)
	var ctx model.ConversationContext
	require.NoError(t, json.Unmarshal(conv.Context, &ctx))
	require.NotEmpty(t, ctx.Window)
	assert.Equal(t, "conversa", ctx.LastIntent)
}

func TestHandleProcessMessageThrottlesWithSingleNotice(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionActive, time.Now().AddDate(0, -1, 0))
	f.pipe.RateLimiter = service.NewRateLimiter(f.messages, 3, 60*time.Second)

	// 3 dentro do limite
	for i := 1; i <= 3; i++ {
		task := f.inbound(t, fmt.Sprintf("wamid.T%d", i), "oi")
		require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))
	}
	assert.Equal(t, 3, f.client.calls)
	assert.Len(t, f.sender.sent, 3)

	// 4ª e 5ª estouram: um único aviso de throttle, IA pulada
	for i := 4; i <= 5; i++ {
		task := f.inbound(t, fmt.Sprintf("wamid.T%d", i), "oi")
		require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))
	}
	assert.Equal(t, 3, f.client.calls, "IA não roda acima do limite")
	require.Len(t, f.sender.sent, 4, "só um aviso de throttle na janela")
	assert.Equal(t, noticeThrottled, f.sender.sent[3])

	// as mensagens estouradas continuam persistidas
	var count int64
	require.NoError(t, f.db.Model(&model.Message{}).
		Where("direction = ?", model.DirectionInbound).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

func TestHandleProcessMessageBlocksExpiredSubscription(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionExpired, time.Now().AddDate(0, -2, 0))

	task := f.inbound(t, "wamid.E1", "oi")
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))

	assert.Zero(t, f.client.calls, "sem assinatura, a IA nem é chamada")
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, noticeUnavailable, f.sender.sent[0])

	// segunda mensagem no mesmo dia: aviso deduplicado
	task = f.inbound(t, "wamid.E2", "alô?")
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))
	assert.Len(t, f.sender.sent, 1)
}

func TestHandleProcessMessageTrialStillProcesses(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionTrial, time.Now().AddDate(0, 0, -2))

	task := f.inbound(t, "wamid.TR1", "oi")
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))
	assert.Equal(t, 1, f.client.calls)
	assert.Len(t, f.sender.sent, 1)
}

func TestHandleProcessMessageSilentWhileWaitingHuman(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionActive, time.Now().AddDate(0, -1, 0))
	require.NoError(t, f.db.Model(f.conv).
		Update("status", model.ConversationWaitingHuman).Error)

	task := f.inbound(t, "wamid.H1", "ok, obrigado")
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), task))

	// conversa nas mãos de um humano: o bot não responde nem chama a IA
	assert.Zero(t, f.client.calls)
	assert.Empty(t, f.sender.sent)

	// a mensagem continua registrada
	var count int64
	require.NoError(t, f.db.Model(&model.Message{}).
		Where("direction = ?", model.DirectionInbound).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleProcessMessageThrottleNoticeRepeatsAfterWindow(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionActive, time.Now().AddDate(0, -1, 0))
	f.pipe.RateLimiter = service.NewRateLimiter(f.messages, 1, 200*time.Millisecond)

	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), f.inbound(t, "wamid.W1", "oi")))
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), f.inbound(t, "wamid.W2", "oi")))
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, noticeThrottled, f.sender.sent[1])

	// janela esvaziada: volta a processar, e uma nova rajada ganha um
	// novo aviso porque a chave do aviso expira junto com a janela
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), f.inbound(t, "wamid.W3", "oi")))
	require.NoError(t, f.pipe.HandleProcessMessage(context.Background(), f.inbound(t, "wamid.W4", "oi")))

	require.Len(t, f.sender.sent, 4)
	assert.Equal(t, noticeThrottled, f.sender.sent[3])
	assert.Equal(t, 2, f.client.calls)
}

func TestHandleProcessMessageRejectsMalformedPayload(t *testing.T) {
	f := newPipeFixture(t, model.SubscriptionActive, time.Now())
	task := &model.QueuedTask{Kind: model.TaskProcessMessage, Payload: []byte("{")}
	err := f.pipe.HandleProcessMessage(context.Background(), task)
	require.Error(t, err)
}
