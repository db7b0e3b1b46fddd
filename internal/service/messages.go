package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// MessageService é o armazenamento durável de mensagens, com escrita
// idempotente pelo id do transporte e atualização monotônica de entrega.
type MessageService struct {
	DB *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db}
}

// RecordInbound grava uma mensagem recebida. Reentregas do mesmo WamID não
// criam uma segunda linha (insert-or-ignore no índice único); o retorno
// created=false sinaliza duplicata e o pipeline para ali.
func (s *MessageService) RecordInbound(msg *model.Message) (created bool, err error) {
	msg.Direction = model.DirectionInbound
	if msg.Status == "" {
		msg.Status = model.StatusReceived
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wam_id"}},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	// Atualiza os contadores denormalizados da conversa.
	err = s.DB.Model(&model.Conversation{}).
		Where("id = ?", msg.ConversationID).
		Updates(map[string]any{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": msg.Timestamp,
		}).Error
	return true, err
}

// RecordOutbound grava uma mensagem enviada pelo assistente. O wamID vem do
// transporte quando o envio deu certo; em falha grava status failed com motivo.
func (s *MessageService) RecordOutbound(tenantID, conversationID uint, wamID, content string, sendErr error) error {
	msg := model.Message{
		TenantID:       tenantID,
		ConversationID: conversationID,
		WamID:          wamID,
		Direction:      model.DirectionOutbound,
		Type:           model.MessageText,
		Content:        content,
		Status:         model.StatusSent,
		Timestamp:      time.Now(),
	}
	if sendErr != nil {
		msg.Status = model.StatusFailed
		msg.FailReason = sendErr.Error()
		if msg.WamID == "" {
			// sem id do transporte; gera um local para não violar o índice
			msg.WamID = fmt.Sprintf("local-%d-%d", conversationID, time.Now().UnixNano())
		}
	}
	return s.DB.Create(&msg).Error
}

// UpdateDeliveryStatus aplica um callback de entrega pelo wamID. A progressão
// é monotônica: failed e read são terminais, e um "sent" atrasado nunca
// sobrescreve um estado mais adiantado.
func (s *MessageService) UpdateDeliveryStatus(wamID, newStatus, failReason string) error {
	var msg model.Message
	if err := s.DB.Where("wam_id = ?", wamID).First(&msg).Error; err != nil {
		return err
	}

	if model.IsTerminalStatus(msg.Status) {
		return nil
	}
	if model.StatusRank(newStatus) <= model.StatusRank(msg.Status) {
		return nil // callback fora de ordem, ignora
	}

	updates := map[string]any{"status": newStatus}
	if newStatus == model.StatusFailed && failReason != "" {
		updates["fail_reason"] = failReason
	}
	return s.DB.Model(&msg).Updates(updates).Error
}

// RecentWindow devolve as últimas n mensagens da conversa em ordem
// cronológica, para montar o contexto do prompt.
func (s *MessageService) RecentWindow(conversationID uint, n int) ([]model.Message, error) {
	var msgs []model.Message
	err := s.DB.Where("conversation_id = ?", conversationID).
		Order("id DESC").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// inverte para ordem cronológica
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountInboundSince conta mensagens recebidas da conversa na janela móvel.
// É uma consulta pontual contra o banco — eventualmente consistente sob
// alta concorrência, aproximação aceita do limitador.
func (s *MessageService) CountInboundSince(conversationID uint, since time.Time) (int64, error) {
	var count int64
	err := s.DB.Model(&model.Message{}).
		Where("conversation_id = ? AND direction = ? AND created_at >= ?",
			conversationID, model.DirectionInbound, since).
		Count(&count).Error
	return count, err
}
