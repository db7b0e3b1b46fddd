package model

import "time"

// Status possíveis de um agendamento.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment é uma visita agendada via conversa.
type Appointment struct {
	ID              uint      `gorm:"primaryKey"`
	TenantID        uint      `gorm:"not null;index"`
	CustomerID      uint      `gorm:"not null;index"`
	Title           string    `gorm:"size:150"`
	ScheduledAt     time.Time `gorm:"not null;index"`
	DurationMinutes int       `gorm:"default:60"`
	Status          string    `gorm:"type:varchar(15);not null;default:'scheduled'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt devolve o fim do intervalo ocupado pelo agendamento.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
