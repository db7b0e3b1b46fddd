package ai

import (
	"context"
	"log"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// LoopState é o estado da máquina do loop de ferramentas. O teto de
// iterações é uma transição de primeira classe (capped), não um guard
// incidental.
type LoopState string

const (
	StateAwaitingModel  LoopState = "awaiting_model"
	StateExecutingTools LoopState = "executing_tools"
	StateDone           LoopState = "done"
	StateCapped         LoopState = "capped"
)

// Janela de mensagens recentes incluída no contexto.
const ContextWindowSize = 5

// DefaultMaxIterations limita o loop contra um serviço de raciocínio que
// não termina sozinho.
const DefaultMaxIterations = 5

// Resposta de fallback quando o teto é atingido.
const cappedFallbackReply = "Vou te transferir para um de nossos atendentes para continuar, só um momento! 🙋"

// ExecutedCall registra uma ferramenta executada no loop, com resultado.
type ExecutedCall struct {
	Name   string
	Args   string
	Result ToolResult
}

// Outcome é o produto final do orquestrador para uma mensagem.
type Outcome struct {
	Reply   string
	State   LoopState
	Calls   []ExecutedCall
	Intent  string
	Context model.ConversationContext
}

// Orchestrator dirige o loop limitado de tool-calling contra o serviço
// de raciocínio.
type Orchestrator struct {
	Client        Client
	Executor      *Executor
	MaxIterations int
}

func NewOrchestrator(client Client, executor *Executor, maxIterations int) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Orchestrator{Client: client, Executor: executor, MaxIterations: maxIterations}
}

// Process roda o loop: submete contexto+catálogo, executa as ferramentas
// pedidas, reanexa os resultados e resubmete, até resposta final ou teto.
// No teto, a conversa vai para atendimento humano com resposta de fallback.
func (o *Orchestrator) Process(ctx context.Context, scope Scope, window []model.Message, inbound string) (*Outcome, error) {
	messages := BuildContext(scope.Tenant, window, inbound)
	catalog := Catalog()

	outcome := &Outcome{State: StateAwaitingModel}

	for iteration := 0; iteration < o.MaxIterations; iteration++ {
		resp, err := o.Client.Chat(ctx, &ChatRequest{Messages: messages, Tools: catalog})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			outcome.State = StateDone
			outcome.Reply = resp.Content
			break
		}

		outcome.State = StateExecutingTools
		messages = append(messages, ChatMessage{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := o.executeCall(ctx, scope, call)
			outcome.Calls = append(outcome.Calls, ExecutedCall{
				Name: call.Name, Args: call.Arguments, Result: result,
			})
			messages = append(messages, ChatMessage{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Content:    result.JSON(),
			})
		}
		outcome.State = StateAwaitingModel
	}

	if outcome.State != StateDone {
		// teto atingido: entrega para humano em vez de insistir
		outcome.State = StateCapped
		outcome.Reply = cappedFallbackReply
		if err := o.Executor.Resolver.TransferToHuman(scope.ConversationID); err != nil {
			log.Printf("AVISO: falha ao transferir conversa %d após teto do loop: %v", scope.ConversationID, err)
		}
	}

	outcome.Intent = selectIntent(outcome.Calls)
	outcome.Context = buildUpdatedContext(window, inbound, outcome)
	return outcome, nil
}

// executeCall faz o parse do pedido e executa; pedidos malformados viram
// resultado estruturado para o modelo corrigir na próxima volta.
func (o *Orchestrator) executeCall(ctx context.Context, scope Scope, call ToolCall) ToolResult {
	req, err := ParseToolCall(call.Name, call.Arguments)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return o.Executor.Execute(ctx, scope, req)
}

// intentPriority define o rótulo grosseiro de intenção pela ferramenta
// mais "forte" executada com sucesso.
var intentPriority = []string{
	ToolFinalizarPedido,
	ToolAdicionarAoCarrinho,
	ToolAgendarVisita,
	ToolBuscarProdutos,
	ToolVerCarrinho,
	ToolTransferirHumano,
}

func selectIntent(calls []ExecutedCall) string {
	for _, name := range intentPriority {
		for _, c := range calls {
			if c.Name == name && c.Result.Success {
				return name
			}
		}
	}
	return "conversa"
}

// buildUpdatedContext devolve a janela rolante a persistir na conversa.
func buildUpdatedContext(window []model.Message, inbound string, outcome *Outcome) model.ConversationContext {
	ctx := model.ConversationContext{LastIntent: outcome.Intent}

	for _, m := range window {
		role := "user"
		if m.Direction == model.DirectionOutbound {
			role = "assistant"
		}
		if m.Content == "" {
			continue
		}
		ctx.Window = append(ctx.Window, model.ContextMessage{Role: role, Content: m.Content})
	}
	ctx.Window = append(ctx.Window, model.ContextMessage{Role: "user", Content: inbound})
	if outcome.Reply != "" {
		ctx.Window = append(ctx.Window, model.ContextMessage{Role: "assistant", Content: outcome.Reply})
	}

	// mantém só a cauda da janela
	if len(ctx.Window) > ContextWindowSize {
		ctx.Window = ctx.Window[len(ctx.Window)-ContextWindowSize:]
	}
	return ctx
}
