package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant representa uma conta de negócio isolada na plataforma.
// Os campos de persona alimentam a montagem do prompt do assistente.
type Tenant struct {
	ID           uint   `gorm:"primaryKey"`
	BusinessName string `gorm:"not null;size:150"`
	// --- Persona do assistente ---
	AssistantName string `gorm:"size:100;default:'Assistente'"`
	Personality   string `gorm:"type:text"`
	Tone          string `gorm:"size:50;default:'amigável'"`
	Greeting      string `gorm:"type:text"`
	Farewell      string `gorm:"type:text"`
	Guidelines    string `gorm:"type:text"`
	// --- Horário de funcionamento (para agendamentos) ---
	OpenHour     string `gorm:"size:5;default:'09:00'"` // formato HH:MM
	CloseHour    string `gorm:"size:5;default:'18:00'"`
	AllowOverlap bool   `gorm:"default:false"` // permite agendamentos sobrepostos
	// --- Credenciais do WhatsApp Cloud API (por tenant) ---
	PhoneNumberID string `gorm:"size:50"`
	AccessToken   string `gorm:"type:text"`
	APIVersion    string `gorm:"size:10;default:'v21.0'"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TenantNumber mapeia o identificador do número de negócio atribuído pelo
// transporte (phone_number_id do webhook) para o tenant dono dele.
// Resolvido a cada requisição — é isso que dá o multi-tenant de verdade.
type TenantNumber struct {
	ID            uint   `gorm:"primaryKey"`
	PhoneNumberID string `gorm:"uniqueIndex;not null;size:50"`
	TenantID      uint   `gorm:"not null;index"`
	Tenant        Tenant `gorm:"foreignKey:TenantID"`
	CreatedAt     time.Time
}

// Status possíveis de uma assinatura da plataforma.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription é a assinatura da plataforma, uma por tenant.
type Subscription struct {
	ID              uint      `gorm:"primaryKey"`
	TenantID        uint      `gorm:"uniqueIndex;not null"`
	Status          string    `gorm:"type:varchar(20);not null;default:'trial'"`
	StartDate       time.Time `gorm:"not null"`
	NextBillingDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
