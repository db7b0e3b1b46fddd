// /cmd/server/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/ai"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/config"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/database"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/handler"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/payment"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/pipeline"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/queue"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/webhook"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Aviso: arquivo .env não encontrado, usando variáveis de ambiente.")
	}

	cfg := config.Load()

	database.ConnectDB()
	database.ConnectRedis()
	database.SeedDemoTenant()

	// Serviços de domínio.
	messages := service.NewMessageService(database.DB)
	resolver := service.NewResolverService(database.DB)
	subscriptions := service.NewSubscriptionService(database.DB)
	carts := service.NewCartService(database.DB)
	orders, err := service.NewOrderService(database.DB)
	if err != nil {
		log.Fatal("Erro ao iniciar o gerador de números de pedido:", err)
	}
	scheduling := service.NewSchedulingService(database.DB)
	limiter := service.NewRateLimiter(messages, cfg.Limits.RateLimitMax,
		time.Duration(cfg.Limits.RateLimitWindowSeconds)*time.Second)
	notices := service.NewNoticeDeduper(database.Redis)

	// Cobrança PIX: opcional, o fluxo de pedido segue sem ela.
	var charger service.PixCharger
	var pixGen *payment.PixGenerator
	if cfg.Payment.MPAccessToken != "" {
		pix, err := payment.NewPixGenerator(database.DB, cfg.Payment.MPAccessToken)
		if err != nil {
			log.Fatal("Erro ao configurar o Mercado Pago:", err)
		}
		pixGen = pix
		charger = pix
	} else {
		log.Println("Aviso: MP_ACCESS_TOKEN não configurado, pedidos serão criados sem cobrança PIX.")
	}
	checkout := service.NewCheckoutService(orders, messages, charger)

	executor := ai.NewExecutor(database.DB, carts, checkout, scheduling, resolver)
	aiClient := ai.NewHTTPClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model)
	orchestrator := ai.NewOrchestrator(aiClient, executor, cfg.AI.MaxIterations)

	newSender := func(tenant *model.Tenant) whatsapp.Sender {
		version := tenant.APIVersion
		if version == "" {
			version = cfg.WhatsApp.APIVersion
		}
		return whatsapp.NewClient(tenant.PhoneNumberID, tenant.AccessToken, version)
	}

	q := queue.New(database.DB)
	pipe := &pipeline.Pipeline{
		DB:            database.DB,
		Messages:      messages,
		Subscriptions: subscriptions,
		RateLimiter:   limiter,
		Notices:       notices,
		Orchestrator:  orchestrator,
		NewSender:     newSender,
	}
	q.Register(model.TaskProcessMessage, pipe.HandleProcessMessage)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go q.RunWorker(ctx, 2*time.Second)

	// Handlers HTTP.
	webhookHandler := &webhook.Handler{
		DB:          database.DB,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		Resolver:    resolver,
		Messages:    messages,
		Queue:       q,
	}
	authHandler := &handler.AuthHandler{
		ServiceKeyHash: cfg.Internal.ServiceKeyHash,
		JWTSecret:      cfg.Internal.JWTSecret,
	}
	internalHandler := handler.NewInternalHandler(database.DB, resolver, messages,
		carts, checkout, q, newSender)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/webhook/whatsapp", webhookHandler.Verify)
	router.POST("/webhook/whatsapp", webhookHandler.Receive)
	if pixGen != nil {
		paymentHandler := &webhook.PaymentHandler{Charges: pixGen}
		router.POST("/webhook/mercadopago", paymentHandler.Notify)
	}

	internal := router.Group("/internal/v1")
	internal.Use(cors.Default())
	internal.POST("/token", authHandler.IssueToken)
	authed := internal.Group("")
	authed.Use(authHandler.ServiceAuthRequired())
	{
		authed.POST("/ai/process-message", internalHandler.ProcessMessage)
		authed.POST("/cart/add-item", internalHandler.CartAddItem)
		authed.POST("/cart/apply-coupon", internalHandler.CartApplyCoupon)
		authed.POST("/orders/finalize", internalHandler.OrdersFinalize)
		authed.POST("/messages/send", internalHandler.MessagesSend)
	}

	log.Printf("Servidor rodando na porta %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Erro ao iniciar o servidor:", err)
	}
}
