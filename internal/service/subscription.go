package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// Dias de trial contados a partir do início da assinatura.
const trialDays = 7

// Access é o resultado da checagem de direito de uso da plataforma.
type Access struct {
	Active        bool
	Trial         bool
	Expired       bool
	DaysRemaining int
	StatusMessage string
}

// SubscriptionService decide se o tenant tem direito ao processamento
// automatizado. Roda antes de qualquer trabalho de IA/ferramentas.
type SubscriptionService struct {
	DB *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{DB: db}
}

// CheckAccess calcula o estado da assinatura do tenant em "now".
// Ausência de assinatura conta como expirada (fail closed: sem registro,
// sem acesso automatizado).
func (s *SubscriptionService) CheckAccess(tenantID uint, now time.Time) (*Access, error) {
	var sub model.Subscription
	err := s.DB.Where("tenant_id = ?", tenantID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Access{
			Expired:       true,
			StatusMessage: "Nenhuma assinatura encontrada para este negócio.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return evaluateSubscription(&sub, now), nil
}

// evaluateSubscription aplica as regras de transição por data.
func evaluateSubscription(sub *model.Subscription, now time.Time) *Access {
	acc := &Access{}

	trialEnd := sub.StartDate.AddDate(0, 0, trialDays)
	acc.Trial = now.Before(trialEnd)
	if acc.Trial {
		remaining := int(trialEnd.Sub(now).Hours() / 24)
		if remaining < 0 {
			remaining = 0
		}
		acc.DaysRemaining = remaining
	}

	switch {
	case sub.Status == model.SubscriptionExpired:
		acc.Expired = true
	case sub.Status == model.SubscriptionCancelled && now.After(sub.NextBillingDate):
		acc.Expired = true
	}

	statusOK := sub.Status == model.SubscriptionActive || sub.Status == model.SubscriptionTrial
	acc.Active = statusOK && !acc.Expired

	switch {
	case acc.Expired:
		acc.StatusMessage = "Assinatura expirada. Renove para reativar o atendimento automático."
	case acc.Trial && acc.Active:
		acc.StatusMessage = fmt.Sprintf("Período de teste: %d dia(s) restante(s).", acc.DaysRemaining)
	case acc.Active:
		acc.StatusMessage = "Assinatura ativa."
	default:
		acc.StatusMessage = "Assinatura inativa."
	}

	return acc
}
