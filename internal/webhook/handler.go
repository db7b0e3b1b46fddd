package webhook

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/pipeline"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/queue"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

const signatureHeader = "X-Hub-Signature-256"

// Handler recebe o tráfego do webhook do WhatsApp. O POST persiste a
// mensagem, enfileira o processamento e responde na hora — a IA e os
// efeitos seguintes rodam na fila, fora da resposta HTTP.
type Handler struct {
	DB          *gorm.DB
	VerifyToken string
	AppSecret   string
	Resolver    *service.ResolverService
	Messages    *service.MessageService
	Queue       *queue.Queue
}

// Verify responde ao desafio síncrono de verificação do transporte (GET).
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.VerifyToken != "" && token == h.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "token de verificação inválido")
}

// Receive trata o POST de eventos. Verifica a assinatura sobre o corpo
// cru antes de qualquer parse; qualquer divergência derruba a requisição
// antes de qualquer persistência.
func (h *Handler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "corpo inválido"})
		return
	}

	if err := VerifySignature(h.AppSecret, body, c.GetHeader(signatureHeader)); err != nil {
		log.Printf("Webhook rejeitado: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "assinatura inválida"})
		return
	}

	var envelope whatsapp.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "envelope malformado"})
		return
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			h.handleChange(&change.Value)
		}
	}

	// sempre 200 depois da persistência, senão o transporte reentrega
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleChange despacha mensagens novas e callbacks de entrega de um change.
func (h *Handler) handleChange(value *whatsapp.WebhookValue) {
	for _, status := range value.Statuses {
		failReason := ""
		if len(status.Errors) > 0 {
			failReason = status.Errors[0].Title
		}
		if err := h.Messages.UpdateDeliveryStatus(status.ID, status.Status, failReason); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("AVISO: falha ao atualizar status de %s: %v", status.ID, err)
			}
		}
	}

	if len(value.Messages) == 0 {
		return
	}

	// mapeamento número de negócio -> tenant, resolvido por requisição
	var binding model.TenantNumber
	err := h.DB.Preload("Tenant").
		Where("phone_number_id = ?", value.Metadata.PhoneNumberID).
		First(&binding).Error
	if err != nil {
		log.Printf("AVISO: número de negócio %s sem tenant vinculado, mensagens ignoradas",
			value.Metadata.PhoneNumberID)
		return
	}

	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		names[contact.WaID] = contact.Profile.Name
	}

	for i := range value.Messages {
		h.handleInbound(&binding.Tenant, &value.Messages[i], names[value.Messages[i].From])
	}
}

// handleInbound persiste a mensagem (idempotente) e enfileira o
// processamento. Duplicata de WamID para aqui, sem segunda tarefa.
func (h *Handler) handleInbound(tenant *model.Tenant, msg *whatsapp.InboundMessage, profileName string) {
	ts := parseEpoch(msg.Timestamp)

	customer, err := h.Resolver.ResolveCustomer(tenant.ID, msg.From, profileName, ts)
	if err != nil {
		log.Printf("ERRO: falha ao resolver cliente %s: %v", msg.From, err)
		return
	}
	conv, err := h.Resolver.ResolveConversation(tenant.ID, msg.From, customer, ts)
	if err != nil {
		log.Printf("ERRO: falha ao resolver conversa de %s: %v", msg.From, err)
		return
	}

	record := model.Message{
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		WamID:          msg.ID,
		Type:           msg.Type,
		Content:        msg.TextContent(),
		Timestamp:      ts,
	}
	created, err := h.Messages.RecordInbound(&record)
	if err != nil {
		log.Printf("ERRO: falha ao gravar mensagem %s: %v", msg.ID, err)
		return
	}
	if !created {
		log.Printf("Mensagem %s já registrada (reentrega), ignorando", msg.ID)
		return
	}

	payload := pipeline.ProcessMessagePayload{
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		CustomerID:     customer.ID,
		WamID:          msg.ID,
		Phone:          msg.From,
		Text:           record.Content,
	}
	if _, err := h.Queue.Enqueue(tenant.ID, model.TaskProcessMessage, msg.ID, payload); err != nil {
		log.Printf("ERRO: falha ao enfileirar processamento de %s: %v", msg.ID, err)
	}
}

// parseEpoch converte o timestamp unix (string) do transporte.
func parseEpoch(s string) time.Time {
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0)
	}
	return time.Now()
}
