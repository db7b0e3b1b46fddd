package model

import (
	"time"
)

// Direções de mensagem.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Tipos de mensagem suportados pelo transporte.
const (
	MessageText        = "text"
	MessageImage       = "image"
	MessageVideo       = "video"
	MessageDocument    = "document"
	MessageAudio       = "audio"
	MessageLocation    = "location"
	MessageInteractive = "interactive"
)

// Estados de entrega. received -> sent -> delivered -> read, ou failed.
const (
	StatusReceived  = "received"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message é o registro durável de uma mensagem trocada numa conversa.
// Imutável depois de criada, exceto os campos de estado de entrega.
// O WamID (id atribuído pelo transporte) é a fronteira de idempotência:
// uma reentrega do mesmo id não pode criar uma segunda linha.
type Message struct {
	ID             uint   `gorm:"primaryKey"`
	TenantID       uint   `gorm:"not null;index"`
	ConversationID uint   `gorm:"not null;index"`
	WamID          string `gorm:"uniqueIndex;not null;size:128"`
	Direction      string `gorm:"type:varchar(10);not null"`
	Type           string `gorm:"type:varchar(20);not null;default:'text'"`
	Content        string `gorm:"type:text"`
	MediaURL       string `gorm:"type:text"`
	Status         string `gorm:"type:varchar(20);not null;default:'received'"`
	FailReason     string `gorm:"type:text"`
	Timestamp      time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// statusRank ordena os estados de entrega para garantir monotonicidade:
// um callback atrasado de "sent" não pode sobrescrever "read" nem "failed".
var statusRank = map[string]int{
	StatusReceived:  0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4, // terminal
}

// StatusRank devolve a posição do estado na progressão de entrega.
// Estados desconhecidos ficam abaixo de todos.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

// IsTerminalStatus diz se o estado de entrega não pode mais mudar.
func IsTerminalStatus(status string) bool {
	return status == StatusRead || status == StatusFailed
}
