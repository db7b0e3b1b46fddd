package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer é um cliente final identificado por (tenant, telefone).
// Criado automaticamente no primeiro contato pelo WhatsApp.
type Customer struct {
	ID                uint   `gorm:"primaryKey"`
	TenantID          uint   `gorm:"not null;uniqueIndex:idx_customer_tenant_phone"`
	Phone             string `gorm:"not null;size:20;uniqueIndex:idx_customer_tenant_phone"`
	Name              string `gorm:"size:150"`
	OptIn             bool   `gorm:"default:true"`
	LastInteractionAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// PlaceholderName gera um nome provisório a partir do telefone
// para clientes que ainda não informaram o nome no perfil.
func PlaceholderName(phone string) string {
	suffix := phone
	if len(phone) > 4 {
		suffix = phone[len(phone)-4:]
	}
	return fmt.Sprintf("Cliente %s", suffix)
}

// Status possíveis de uma conversa.
const (
	ConversationActive       = "active"
	ConversationWaitingHuman = "waiting_human"
	ConversationClosed       = "closed"
)

// Conversation é a troca de mensagens em andamento com um cliente.
// Só pode existir uma conversa ativa por (tenant, telefone); a coluna
// ActiveKey fica NULL quando a conversa sai do estado ativo, liberando
// o índice único para uma nova conversa.
type Conversation struct {
	ID            uint    `gorm:"primaryKey"`
	TenantID      uint    `gorm:"not null;index"`
	CustomerID    *uint   `gorm:"index"` // nullable: dados legados podem não ter vínculo
	Customer      *Customer
	Phone         string  `gorm:"not null;size:20;index"`
	Status        string  `gorm:"type:varchar(20);not null;default:'active'"`
	ActiveKey     *string `gorm:"uniqueIndex"`
	Context       datatypes.JSON // janela de mensagens recentes + última intenção
	MessageCount  int     `gorm:"default:0"`
	StartedAt     time.Time
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConversationActiveKey monta a chave do índice único de conversa ativa.
func ConversationActiveKey(tenantID uint, phone string) string {
	return fmt.Sprintf("conv:%d:%s", tenantID, phone)
}

// ConversationContext é o blob denormalizado persistido em Conversation.Context.
type ConversationContext struct {
	LastIntent string           `json:"last_intent,omitempty"`
	Window     []ContextMessage `json:"window,omitempty"`
}

// ContextMessage é uma entrada da janela de contexto.
type ContextMessage struct {
	Role    string `json:"role"` // "user" ou "assistant"
	Content string `json:"content"`
}
