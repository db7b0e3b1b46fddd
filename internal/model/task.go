package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tipos de tarefa da fila interna.
const (
	TaskProcessMessage = "process_message"
)

// Status possíveis de uma tarefa.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskDone       = "done"
	TaskFailed     = "failed"
)

// QueuedTask é uma entrega at-least-once da fila interna. A DedupKey
// (o WamID da mensagem, na prática) garante que uma segunda tentativa de
// enfileirar o mesmo evento não cria uma segunda tarefa, e o consumidor
// é idempotente pela mesma chave.
type QueuedTask struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uint      `gorm:"not null;index"`
	Kind        string    `gorm:"type:varchar(30);not null"`
	DedupKey    string    `gorm:"uniqueIndex;not null;size:160"`
	Payload     datatypes.JSON
	Status      string    `gorm:"type:varchar(15);not null;default:'pending';index"`
	Attempts    int       `gorm:"default:0"`
	MaxAttempts int       `gorm:"default:3"`
	LastError   string    `gorm:"type:text"`
	NextRetryAt time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeCreate garante o UUID da tarefa.
func (t *QueuedTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
