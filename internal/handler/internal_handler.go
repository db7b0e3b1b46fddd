package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/pipeline"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/queue"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
)

// InternalHandler expõe as operações core-to-core: processamento de IA,
// mutação de carrinho, finalização de pedido e envio de mensagem. Cada
// rota recebe o tenant id e o payload da operação, já atrás do
// middleware de credencial de serviço.
type InternalHandler struct {
	DB        *gorm.DB
	Resolver  *service.ResolverService
	Messages  *service.MessageService
	Carts     *service.CartService
	Checkout  *service.CheckoutService
	Queue     *queue.Queue
	NewSender pipeline.SenderFactory

	validate *validator.Validate
}

func NewInternalHandler(db *gorm.DB, resolver *service.ResolverService,
	messages *service.MessageService, carts *service.CartService,
	checkout *service.CheckoutService, q *queue.Queue, newSender pipeline.SenderFactory) *InternalHandler {
	return &InternalHandler{
		DB: db, Resolver: resolver, Messages: messages,
		Carts: carts, Checkout: checkout, Queue: q, NewSender: newSender,
		validate: validator.New(),
	}
}

// respondErr padroniza a resposta de erro das rotas internas.
func respondErr(c *gin.Context, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": v.Message, "details": v.Details})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "erro interno"})
}

type processMessageRequest struct {
	TenantID uint   `json:"tenant_id" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// ProcessMessage injeta uma mensagem no pipeline como se tivesse chegado
// pelo webhook: resolve cliente/conversa, persiste e enfileira a IA.
func (h *InternalHandler) ProcessMessage(c *gin.Context) {
	var req processMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payload inválido"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	now := time.Now()
	customer, err := h.Resolver.ResolveCustomer(req.TenantID, req.Phone, "", now)
	if err != nil {
		respondErr(c, err)
		return
	}
	conv, err := h.Resolver.ResolveConversation(req.TenantID, req.Phone, customer, now)
	if err != nil {
		respondErr(c, err)
		return
	}

	wamID := "internal-" + uuid.NewString()
	record := model.Message{
		TenantID:       req.TenantID,
		ConversationID: conv.ID,
		WamID:          wamID,
		Type:           model.MessageText,
		Content:        req.Text,
		Timestamp:      now,
	}
	if _, err := h.Messages.RecordInbound(&record); err != nil {
		respondErr(c, err)
		return
	}

	payload := pipeline.ProcessMessagePayload{
		TenantID:       req.TenantID,
		ConversationID: conv.ID,
		CustomerID:     customer.ID,
		WamID:          wamID,
		Phone:          req.Phone,
		Text:           req.Text,
	}
	if _, err := h.Queue.Enqueue(req.TenantID, model.TaskProcessMessage, wamID, payload); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "conversation_id": conv.ID})
}

type addItemRequest struct {
	TenantID   uint   `json:"tenant_id" validate:"required"`
	CustomerID uint   `json:"customer_id" validate:"required"`
	ProductID  uint   `json:"product_id" validate:"required"`
	VariantID  string `json:"variant_id"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

// CartAddItem adiciona um item ao carrinho ativo do cliente.
func (h *InternalHandler) CartAddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payload inválido"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	cart, err := h.Carts.AddItem(req.TenantID, req.CustomerID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

type applyCouponRequest struct {
	TenantID   uint   `json:"tenant_id" validate:"required"`
	CustomerID uint   `json:"customer_id" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

// CartApplyCoupon aplica um cupom ao carrinho ativo do cliente.
func (h *InternalHandler) CartApplyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payload inválido"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	cart, err := h.Carts.ApplyCoupon(req.TenantID, req.CustomerID, req.Code)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
}

type finalizeRequest struct {
	TenantID        uint   `json:"tenant_id" validate:"required"`
	CustomerID      uint   `json:"customer_id" validate:"required"`
	ShippingAddress string `json:"shipping_address" validate:"required"`
	Notes           string `json:"notes"`
}

// OrdersFinalize converte o carrinho ativo do cliente em pedido e roda o
// mesmo pós-commit do fluxo de IA: cobrança PIX e mensagens de
// confirmação/pagamento pelo transporte do tenant.
func (h *InternalHandler) OrdersFinalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payload inválido"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var tenant model.Tenant
	if err := h.DB.First(&tenant, req.TenantID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("tenant %d não encontrado", req.TenantID)})
		return
	}
	var customer model.Customer
	if err := h.DB.Where("tenant_id = ?", req.TenantID).First(&customer, req.CustomerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("cliente %d não encontrado", req.CustomerID)})
		return
	}
	conv, err := h.Resolver.ResolveConversation(req.TenantID, customer.Phone, &customer, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}

	out, err := h.Checkout.Finalize(c.Request.Context(), &tenant, &customer,
		conv.ID, h.NewSender(&tenant), req.ShippingAddress, req.Notes)
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := gin.H{"success": true, "order": out.Order}
	if out.Charge != nil {
		resp["charge"] = out.Charge
	}
	c.JSON(http.StatusOK, resp)
}

type sendMessageRequest struct {
	TenantID uint   `json:"tenant_id" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// MessagesSend envia uma mensagem de texto pelo transporte do tenant.
func (h *InternalHandler) MessagesSend(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "payload inválido"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var tenant model.Tenant
	if err := h.DB.First(&tenant, req.TenantID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("tenant %d não encontrado", req.TenantID)})
		return
	}

	now := time.Now()
	customer, err := h.Resolver.ResolveCustomer(req.TenantID, req.Phone, "", now)
	if err != nil {
		respondErr(c, err)
		return
	}
	conv, err := h.Resolver.ResolveConversation(req.TenantID, req.Phone, customer, now)
	if err != nil {
		respondErr(c, err)
		return
	}

	sender := h.NewSender(&tenant)
	wamID, sendErr := sender.SendText(c.Request.Context(), req.Phone, req.Text)
	if recErr := h.Messages.RecordOutbound(req.TenantID, conv.ID, wamID, req.Text, sendErr); recErr != nil {
		respondErr(c, recErr)
		return
	}
	if sendErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "falha ao enviar pelo transporte"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "wam_id": wamID})
}
