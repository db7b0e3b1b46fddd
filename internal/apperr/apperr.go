// Package apperr define a taxonomia de erros do pipeline.
//
// A política de propagação: erros de autenticação e de assinatura cortam o
// fluxo antes de qualquer mutação; erros de validação viram dados
// estruturados na fronteira do executor de ferramentas; falhas de
// colaboradores externos são logadas e isoladas, nunca desfazem uma
// mutação de carrinho/pedido já confirmada.
package apperr

import (
	"errors"
	"fmt"
)

// AuthenticationError indica assinatura ausente ou inválida no webhook,
// ou credencial de serviço inválida. Rejeita sem retry.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("falha de autenticação: %s", e.Reason)
}

// EntitlementError indica assinatura da plataforma inativa. É um bloqueio
// suave: o cliente recebe um aviso, o webhook não falha.
type EntitlementError struct {
	TenantID uint
	Message  string // mensagem legível para o usuário final
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("tenant %d sem assinatura ativa: %s", e.TenantID, e.Message)
}

// ValidationError indica entrada de domínio inválida (estoque insuficiente,
// cupom inválido, agendamento malformado). É exposta ao cliente final em
// linguagem natural pela resposta da IA, nunca como texto técnico.
type ValidationError struct {
	Field   string
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidation cria um ValidationError simples.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError indica estouro do limite de mensagens da conversa.
// Bloqueio suave: a mensagem continua gravada, só a IA é pulada.
type RateLimitError struct {
	ConversationID uint
	Count          int
	Max            int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("conversa %d excedeu o limite (%d/%d mensagens na janela)",
		e.ConversationID, e.Count, e.Max)
}

// ExternalServiceError indica falha de um colaborador externo
// (serviço de raciocínio, pagamento ou transporte de mensagens).
type ExternalServiceError struct {
	Service   string
	Retriable bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("serviço externo %s falhou: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External embrulha um erro de colaborador externo.
func External(service string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Retriable: true, Err: err}
}

// IsValidation diz se err é (ou embrulha) um ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsValidation extrai o ValidationError embrulhado, se houver.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

// IsAuthentication diz se err é um AuthenticationError.
func IsAuthentication(err error) bool {
	var a *AuthenticationError
	return errors.As(err, &a)
}
