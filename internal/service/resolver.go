package service

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// ResolverService mapeia a identidade do transporte (telefone) para um
// cliente persistido e uma conversa aberta.
type ResolverService struct {
	DB *gorm.DB
}

func NewResolverService(db *gorm.DB) *ResolverService {
	return &ResolverService{DB: db}
}

// isUniqueViolation detecta violação de índice único de forma portátil
// (Postgres em produção, SQLite nos testes) — mesmo truque do cadastro
// de usuário para e-mail duplicado.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint")
}

// ResolveCustomer busca o cliente por (tenant, telefone) e cria se não
// existir. Primeiro contato implica opt-in. Tolerante a corrida: se duas
// resoluções concorrentes tentarem criar, a perdedora refaz a busca.
func (s *ResolverService) ResolveCustomer(tenantID uint, phone, profileName string, ts time.Time) (*model.Customer, error) {
	var customer model.Customer
	err := s.DB.Where("tenant_id = ? AND phone = ?", tenantID, phone).First(&customer).Error
	if err == nil {
		s.DB.Model(&customer).Update("last_interaction_at", ts)
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	name := profileName
	if name == "" {
		name = model.PlaceholderName(phone)
	}
	customer = model.Customer{
		TenantID:          tenantID,
		Phone:             phone,
		Name:              name,
		OptIn:             true,
		LastInteractionAt: ts,
	}
	if err := s.DB.Create(&customer).Error; err != nil {
		if isUniqueViolation(err) {
			// alguém criou primeiro: busca de novo
			if err2 := s.DB.Where("tenant_id = ? AND phone = ?", tenantID, phone).First(&customer).Error; err2 != nil {
				return nil, err2
			}
			return &customer, nil
		}
		return nil, err
	}
	return &customer, nil
}

// ResolveConversation busca a conversa aberta de (tenant, telefone) e cria
// se não existir, ligando ao cliente resolvido. A busca é pela ActiveKey,
// que cobre tanto "active" quanto "waiting_human" — uma conversa esperando
// humano ainda ocupa a vaga. Conversas abertas sem vínculo de cliente
// (dados legados) ganham o vínculo de volta.
func (s *ResolverService) ResolveConversation(tenantID uint, phone string, customer *model.Customer, ts time.Time) (*model.Conversation, error) {
	key := model.ConversationActiveKey(tenantID, phone)

	var conv model.Conversation
	err := s.DB.Where("active_key = ?", key).First(&conv).Error
	if err == nil {
		if conv.CustomerID == nil {
			if err := s.DB.Model(&conv).Update("customer_id", customer.ID).Error; err != nil {
				return nil, err
			}
			conv.CustomerID = &customer.ID
		}
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = model.Conversation{
		TenantID:      tenantID,
		CustomerID:    &customer.ID,
		Phone:         phone,
		Status:        model.ConversationActive,
		ActiveKey:     &key,
		StartedAt:     ts,
		LastMessageAt: ts,
	}
	if err := s.DB.Create(&conv).Error; err != nil {
		if isUniqueViolation(err) {
			if err2 := s.DB.Where("active_key = ?", key).First(&conv).Error; err2 != nil {
				return nil, err2
			}
			return &conv, nil
		}
		return nil, err
	}
	return &conv, nil
}

// CloseConversation encerra a conversa liberando o índice de ativa.
func (s *ResolverService) CloseConversation(conversationID uint) error {
	return s.DB.Model(&model.Conversation{}).Where("id = ?", conversationID).
		Updates(map[string]any{"status": model.ConversationClosed, "active_key": nil}).Error
}

// TransferToHuman marca a conversa como aguardando atendimento humano.
// A conversa continua "ocupando" a vaga de ativa até ser fechada.
func (s *ResolverService) TransferToHuman(conversationID uint) error {
	return s.DB.Model(&model.Conversation{}).Where("id = ?", conversationID).
		Update("status", model.ConversationWaitingHuman).Error
}
