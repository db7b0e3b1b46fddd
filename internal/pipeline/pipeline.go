// Package pipeline liga as pontas do processamento assíncrono: a tarefa
// process_message desenfileirada roda o gate de assinatura, o limitador,
// o orquestrador de IA e o envio da resposta. Tudo aqui acontece depois
// do webhook já ter respondido 200.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/ai"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

// ProcessMessagePayload é o corpo da tarefa process_message.
type ProcessMessagePayload struct {
	TenantID       uint   `json:"tenant_id"`
	ConversationID uint   `json:"conversation_id"`
	CustomerID     uint   `json:"customer_id"`
	WamID          string `json:"wam_id"`
	Phone          string `json:"phone"`
	Text           string `json:"text"`
}

// SenderFactory cria o mensageiro de saída com as credenciais do tenant.
// Nos testes vira um fake.
type SenderFactory func(tenant *model.Tenant) whatsapp.Sender

// Pipeline orquestra o pós-persistência de uma mensagem recebida.
type Pipeline struct {
	DB            *gorm.DB
	Messages      *service.MessageService
	Subscriptions *service.SubscriptionService
	RateLimiter   *service.RateLimiter
	Notices       *service.NoticeDeduper
	Orchestrator  *ai.Orchestrator
	NewSender     SenderFactory
}

// Avisos padrão enviados fora do fluxo de IA.
const (
	noticeUnavailable = "No momento nosso atendimento automático está indisponível. Tente novamente mais tarde ou aguarde contato da nossa equipe."
	noticeThrottled   = "Recebemos bastante mensagens suas agora há pouco! 😅 Aguarde um instante que já respondemos tudo."
)

// HandleProcessMessage é o consumidor da tarefa process_message.
// Idempotente pela DedupKey (o WamID): reexecuções não duplicam efeito
// visível além de, no pior caso, uma resposta repetida.
func (p *Pipeline) HandleProcessMessage(ctx context.Context, task *model.QueuedTask) error {
	var payload ProcessMessagePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("payload inválido: %w", err)
	}

	var tenant model.Tenant
	if err := p.DB.First(&tenant, payload.TenantID).Error; err != nil {
		return fmt.Errorf("tenant %d não encontrado: %w", payload.TenantID, err)
	}
	var customer model.Customer
	if err := p.DB.First(&customer, payload.CustomerID).Error; err != nil {
		return fmt.Errorf("cliente %d não encontrado: %w", payload.CustomerID, err)
	}
	var conversation model.Conversation
	if err := p.DB.First(&conversation, payload.ConversationID).Error; err != nil {
		return fmt.Errorf("conversa %d não encontrada: %w", payload.ConversationID, err)
	}

	// conversa entregue a um humano: o bot silencia até a conversa ser
	// fechada — a mensagem fica registrada, nada além disso
	if conversation.Status == model.ConversationWaitingHuman {
		log.Printf("Conversa %d aguardando atendimento humano; mensagem %s apenas registrada",
			conversation.ID, payload.WamID)
		return nil
	}

	sender := p.NewSender(&tenant)
	now := time.Now()

	// 1. gate de assinatura: sem direito, um aviso único e fim de papo
	access, err := p.Subscriptions.CheckAccess(tenant.ID, now)
	if err != nil {
		return err
	}
	if !access.Active {
		key := fmt.Sprintf("entitlement:%d:%s", tenant.ID, payload.Phone)
		if p.Notices.ShouldNotify(ctx, key, 24*time.Hour) {
			p.sendAndRecord(ctx, sender, &tenant, payload, noticeUnavailable)
		}
		log.Printf("Tenant %d sem assinatura ativa (%s); mensagem %s não processada pela IA",
			tenant.ID, access.StatusMessage, payload.WamID)
		return nil
	}

	// 2. limitador: mensagem fica gravada, só a IA é pulada
	decision, err := p.RateLimiter.Allow(payload.ConversationID, now)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		// chave só por conversa, com TTL igual à janela — sem aritmética
		// de balde, que dobraria o aviso numa rajada cruzando o limite
		key := fmt.Sprintf("throttle:%d", payload.ConversationID)
		if p.Notices.ShouldNotify(ctx, key, p.RateLimiter.Window) {
			p.sendAndRecord(ctx, sender, &tenant, payload, noticeThrottled)
		}
		return nil
	}

	// 3. contexto: janela recente sem a própria mensagem em processamento
	recent, err := p.Messages.RecentWindow(payload.ConversationID, ai.ContextWindowSize+1)
	if err != nil {
		return err
	}
	window := make([]model.Message, 0, len(recent))
	for _, m := range recent {
		if m.WamID == payload.WamID {
			continue
		}
		window = append(window, m)
	}
	if len(window) > ai.ContextWindowSize {
		window = window[len(window)-ai.ContextWindowSize:]
	}

	// 4. loop de IA + ferramentas
	scope := ai.Scope{Tenant: &tenant, Customer: &customer,
		ConversationID: payload.ConversationID, Sender: sender}
	outcome, err := p.Orchestrator.Process(ctx, scope, window, payload.Text)
	if err != nil {
		return err
	}

	// 5. resposta + contexto rolante persistido na conversa
	if outcome.Reply != "" {
		p.sendAndRecord(ctx, sender, &tenant, payload, outcome.Reply)
	}
	if err := p.persistContext(payload.ConversationID, outcome); err != nil {
		log.Printf("AVISO: falha ao persistir contexto da conversa %d: %v", payload.ConversationID, err)
	}
	return nil
}

// sendAndRecord envia e grava a mensagem de saída. Falha de envio é
// logada e gravada como failed — nunca derruba o processamento.
func (p *Pipeline) sendAndRecord(ctx context.Context, sender whatsapp.Sender, tenant *model.Tenant, payload ProcessMessagePayload, text string) {
	wamID, err := sender.SendText(ctx, payload.Phone, text)
	if err != nil {
		log.Printf("AVISO: falha ao enviar mensagem para %s: %v", payload.Phone, err)
	}
	if recErr := p.Messages.RecordOutbound(tenant.ID, payload.ConversationID, wamID, text, err); recErr != nil {
		log.Printf("AVISO: falha ao gravar mensagem de saída: %v", recErr)
	}
}

// persistContext grava a janela e a última intenção na conversa.
func (p *Pipeline) persistContext(conversationID uint, outcome *ai.Outcome) error {
	blob, err := json.Marshal(outcome.Context)
	if err != nil {
		return err
	}
	return p.DB.Model(&model.Conversation{}).Where("id = ?", conversationID).
		Update("context", blob).Error
}
