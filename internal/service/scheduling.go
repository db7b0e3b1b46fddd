package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// SchedulingService cria visitas agendadas validando horário comercial,
// conflito de horário e data no passado.
type SchedulingService struct {
	DB *gorm.DB
}

func NewSchedulingService(db *gorm.DB) *SchedulingService {
	return &SchedulingService{DB: db}
}

// ScheduleVisit valida e cria um agendamento para o cliente.
func (s *SchedulingService) ScheduleVisit(tenant *model.Tenant, customerID uint, at time.Time, title string, durationMinutes int) (*model.Appointment, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	now := time.Now()
	if at.Before(now) {
		return nil, apperr.NewValidation("data", "a data do agendamento não pode estar no passado")
	}

	if err := checkBusinessHours(tenant, at, durationMinutes); err != nil {
		return nil, err
	}

	var appt *model.Appointment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if !tenant.AllowOverlap {
			end := at.Add(time.Duration(durationMinutes) * time.Minute)
			conflicts, err := s.countConflicts(tx, tenant.ID, at, end)
			if err != nil {
				return err
			}
			if conflicts > 0 {
				return apperr.NewValidation("horario", "já existe um agendamento neste horário")
			}
		}

		appt = &model.Appointment{
			TenantID:        tenant.ID,
			CustomerID:      customerID,
			Title:           title,
			ScheduledAt:     at,
			DurationMinutes: durationMinutes,
			Status:          model.AppointmentScheduled,
		}
		return tx.Create(appt).Error
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// countConflicts compara intervalos em memória, independente do dialeto SQL.
func (s *SchedulingService) countConflicts(tx *gorm.DB, tenantID uint, start, end time.Time) (int64, error) {
	var sameDay []model.Appointment
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	err := tx.Where("tenant_id = ? AND status = ? AND scheduled_at >= ? AND scheduled_at < ?",
		tenantID, model.AppointmentScheduled, dayStart, dayStart.AddDate(0, 0, 1)).Find(&sameDay).Error
	if err != nil {
		return 0, err
	}
	var n int64
	for _, a := range sameDay {
		if a.ScheduledAt.Before(end) && a.EndsAt().After(start) {
			n++
		}
	}
	return n, nil
}

// checkBusinessHours garante que o agendamento inteiro cabe no horário de
// funcionamento configurado. O erro nomeia o horário de abertura.
func checkBusinessHours(tenant *model.Tenant, at time.Time, durationMinutes int) error {
	open, err1 := parseClock(tenant.OpenHour)
	closeAt, err2 := parseClock(tenant.CloseHour)
	if err1 != nil || err2 != nil {
		// sem horário configurado corretamente, não bloqueia
		return nil
	}

	startMin := at.Hour()*60 + at.Minute()
	endMin := startMin + durationMinutes

	if startMin < open || endMin > closeAt {
		return &apperr.ValidationError{
			Field: "horario",
			Message: fmt.Sprintf("fora do horário de atendimento (%s às %s)",
				tenant.OpenHour, tenant.CloseHour),
			Details: map[string]any{"abre": tenant.OpenHour, "fecha": tenant.CloseHour},
		}
	}
	return nil
}

// parseClock converte "HH:MM" em minutos desde meia-noite.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("hora inválida: %s", s)
	}
	return h*60 + m, nil
}
