package ai

import (
	"fmt"
	"strings"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// BuildSystemPrompt monta a instrução de sistema a partir dos campos de
// persona configuráveis do tenant.
func BuildSystemPrompt(tenant *model.Tenant) string {
	var b strings.Builder

	name := tenant.AssistantName
	if name == "" {
		name = "Assistente"
	}
	fmt.Fprintf(&b, "Você é %s, assistente virtual de vendas da loja %s no WhatsApp.\n",
		name, tenant.BusinessName)

	if tenant.Personality != "" {
		fmt.Fprintf(&b, "Personalidade: %s.\n", tenant.Personality)
	}
	if tenant.Tone != "" {
		fmt.Fprintf(&b, "Tom de voz: %s.\n", tenant.Tone)
	}
	if tenant.Greeting != "" {
		fmt.Fprintf(&b, "Saudação padrão: %s\n", tenant.Greeting)
	}
	if tenant.Farewell != "" {
		fmt.Fprintf(&b, "Despedida padrão: %s\n", tenant.Farewell)
	}

	b.WriteString("\nUse as ferramentas disponíveis para buscar produtos, montar o carrinho, " +
		"finalizar pedidos, agendar visitas e transferir para um atendente quando o cliente pedir. " +
		"Responda sempre em português, em mensagens curtas adequadas ao WhatsApp. " +
		"Nunca invente preço ou estoque: consulte as ferramentas. " +
		"Se uma ferramenta falhar, explique o problema em linguagem simples, sem termos técnicos.\n")

	if tenant.Guidelines != "" {
		fmt.Fprintf(&b, "\nDiretrizes da loja:\n%s\n", tenant.Guidelines)
	}

	return b.String()
}

// BuildContext monta o contexto: sistema + janela das últimas mensagens +
// a mensagem recebida agora.
func BuildContext(tenant *model.Tenant, window []model.Message, inbound string) []ChatMessage {
	msgs := []ChatMessage{{Role: RoleSystem, Content: BuildSystemPrompt(tenant)}}

	for _, m := range window {
		role := RoleUser
		if m.Direction == model.DirectionOutbound {
			role = RoleAssistant
		}
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: m.Content})
	}

	msgs = append(msgs, ChatMessage{Role: RoleUser, Content: inbound})
	return msgs
}
