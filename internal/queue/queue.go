// Package queue implementa a fila interna de tarefas com entrega
// at-least-once: as tarefas são linhas duráveis no banco, o worker faz
// polling e reexecuta com backoff em caso de falha, e a DedupKey garante
// que reenfileirar o mesmo evento não duplica trabalho. Os consumidores
// são idempotentes pela mesma chave (o WamID da mensagem).
package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// Handler processa uma tarefa. Erro devolvido agenda retry (até o máximo
// de tentativas).
type Handler func(ctx context.Context, task *model.QueuedTask) error

// Queue enfileira e consome tarefas.
type Queue struct {
	DB       *gorm.DB
	handlers map[string]Handler
}

func New(db *gorm.DB) *Queue {
	return &Queue{DB: db, handlers: make(map[string]Handler)}
}

// Register associa um tipo de tarefa ao seu handler.
func (q *Queue) Register(kind string, h Handler) {
	q.handlers[kind] = h
}

// Enqueue grava uma tarefa pendente. Mesmo DedupKey não cria segunda
// tarefa (insert-or-ignore); o retorno diz se a tarefa é nova.
func (q *Queue) Enqueue(tenantID uint, kind, dedupKey string, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	task := model.QueuedTask{
		TenantID:    tenantID,
		Kind:        kind,
		DedupKey:    dedupKey,
		Payload:     body,
		Status:      model.TaskPending,
		MaxAttempts: 3,
		NextRetryAt: time.Now(),
	}
	result := q.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&task)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RunWorker faz polling das tarefas vencidas até o contexto ser cancelado.
func (q *Queue) RunWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Worker da fila interna iniciado.")
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker da fila interna encerrado.")
			return
		case <-ticker.C:
			q.drainDue(ctx)
		}
	}
}

// drainDue processa todas as tarefas pendentes já vencidas.
func (q *Queue) drainDue(ctx context.Context) {
	for {
		task, ok := q.claimNext()
		if !ok {
			return
		}
		q.process(ctx, task)
	}
}

// claimNext pega a próxima tarefa pendente vencida e marca processing.
// O update condicionado ao status evita que dois workers peguem a mesma.
func (q *Queue) claimNext() (*model.QueuedTask, bool) {
	var task model.QueuedTask
	err := q.DB.Where("status = ? AND next_retry_at <= ?", model.TaskPending, time.Now()).
		Order("next_retry_at").First(&task).Error
	if err != nil {
		return nil, false
	}

	result := q.DB.Model(&model.QueuedTask{}).
		Where("id = ? AND status = ?", task.ID, model.TaskPending).
		Updates(map[string]any{
			"status":   model.TaskProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil || result.RowsAffected == 0 {
		return nil, false // outro worker levou
	}
	task.Attempts++
	return &task, true
}

// process roda o handler e resolve o destino da tarefa.
func (q *Queue) process(ctx context.Context, task *model.QueuedTask) {
	handler, ok := q.handlers[task.Kind]
	if !ok {
		log.Printf("AVISO: tarefa %s de tipo desconhecido %q, marcando como falha", task.ID, task.Kind)
		q.DB.Model(task).Updates(map[string]any{"status": model.TaskFailed, "last_error": "tipo de tarefa desconhecido"})
		return
	}

	err := handler(ctx, task)
	if err == nil {
		q.DB.Model(task).Update("status", model.TaskDone)
		return
	}

	log.Printf("Tarefa %s falhou (tentativa %d/%d): %v", task.ID, task.Attempts, task.MaxAttempts, err)
	if task.Attempts >= task.MaxAttempts {
		q.DB.Model(task).Updates(map[string]any{
			"status":     model.TaskFailed,
			"last_error": err.Error(),
		})
		return
	}

	// backoff linear simples: 30s por tentativa já feita
	q.DB.Model(task).Updates(map[string]any{
		"status":        model.TaskPending,
		"last_error":    err.Error(),
		"next_retry_at": time.Now().Add(time.Duration(task.Attempts) * 30 * time.Second),
	})
}
