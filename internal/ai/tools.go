package ai

import (
	"encoding/json"
	"fmt"
)

// Nomes estáveis do catálogo de ferramentas.
const (
	ToolBuscarProdutos      = "buscar_produtos"
	ToolAdicionarAoCarrinho = "adicionar_ao_carrinho"
	ToolVerCarrinho         = "ver_carrinho"
	ToolFinalizarPedido     = "finalizar_pedido"
	ToolAgendarVisita       = "agendar_visita"
	ToolTransferirHumano    = "transferir_humano"
)

// ToolRequest é a união fechada dos pedidos de ferramenta. O switch
// exaustivo no executor dá cobertura em tempo de compilação, em vez de
// um default-case de despacho por string.
type ToolRequest interface {
	ToolName() string
}

type BuscarProdutosReq struct {
	Query string `json:"query" validate:"required"`
}

func (BuscarProdutosReq) ToolName() string { return ToolBuscarProdutos }

type AdicionarAoCarrinhoReq struct {
	ProdutoID  uint   `json:"produto_id" validate:"required"`
	Quantidade int    `json:"quantidade" validate:"required,min=1"`
	VarianteID string `json:"variante_id,omitempty"`
}

func (AdicionarAoCarrinhoReq) ToolName() string { return ToolAdicionarAoCarrinho }

type VerCarrinhoReq struct{}

func (VerCarrinhoReq) ToolName() string { return ToolVerCarrinho }

type FinalizarPedidoReq struct {
	EnderecoEntrega string `json:"endereco_entrega" validate:"required"`
	Observacoes     string `json:"observacoes,omitempty"`
}

func (FinalizarPedidoReq) ToolName() string { return ToolFinalizarPedido }

type AgendarVisitaReq struct {
	DataHora string `json:"data_hora" validate:"required"` // RFC 3339 ou "2006-01-02 15:04"
	Titulo   string `json:"titulo,omitempty"`
}

func (AgendarVisitaReq) ToolName() string { return ToolAgendarVisita }

type TransferirHumanoReq struct {
	Motivo string `json:"motivo,omitempty"`
}

func (TransferirHumanoReq) ToolName() string { return ToolTransferirHumano }

// ParseToolCall converte (nome, argumentos JSON) no valor da união.
// Nome desconhecido vira erro — o executor o transforma em resultado
// estruturado, nunca em pânico.
func ParseToolCall(name string, rawArgs string) (ToolRequest, error) {
	if rawArgs == "" {
		rawArgs = "{}"
	}
	unmarshal := func(dst ToolRequest) (ToolRequest, error) {
		if err := json.Unmarshal([]byte(rawArgs), dst); err != nil {
			return nil, fmt.Errorf("argumentos inválidos para %s: %w", name, err)
		}
		return dst, nil
	}

	switch name {
	case ToolBuscarProdutos:
		return unmarshal(&BuscarProdutosReq{})
	case ToolAdicionarAoCarrinho:
		return unmarshal(&AdicionarAoCarrinhoReq{})
	case ToolVerCarrinho:
		return unmarshal(&VerCarrinhoReq{})
	case ToolFinalizarPedido:
		return unmarshal(&FinalizarPedidoReq{})
	case ToolAgendarVisita:
		return unmarshal(&AgendarVisitaReq{})
	case ToolTransferirHumano:
		return unmarshal(&TransferirHumanoReq{})
	default:
		return nil, fmt.Errorf("ferramenta desconhecida: %s", name)
	}
}

// Catalog publica o catálogo fixo exposto ao serviço de raciocínio.
func Catalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolBuscarProdutos,
			Description: "Busca produtos do catálogo da loja pelo nome ou descrição.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Termo de busca, ex: 'camiseta azul'"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolAdicionarAoCarrinho,
			Description: "Adiciona um produto ao carrinho do cliente.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"produto_id":  map[string]any{"type": "integer", "description": "ID do produto retornado pela busca"},
					"quantidade":  map[string]any{"type": "integer", "minimum": 1},
					"variante_id": map[string]any{"type": "string", "description": "ID da variante, se houver"},
				},
				"required": []string{"produto_id", "quantidade"},
			},
		},
		{
			Name:        ToolVerCarrinho,
			Description: "Mostra o conteúdo atual do carrinho do cliente com os totais.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolFinalizarPedido,
			Description: "Converte o carrinho em pedido e gera a cobrança PIX. Exige endereço de entrega.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"endereco_entrega": map[string]any{"type": "string", "description": "Endereço completo de entrega"},
					"observacoes":      map[string]any{"type": "string"},
				},
				"required": []string{"endereco_entrega"},
			},
		},
		{
			Name:        ToolAgendarVisita,
			Description: "Agenda uma visita à loja dentro do horário de atendimento.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"data_hora": map[string]any{"type": "string", "description": "Data e hora, ex: '2026-09-10 14:00'"},
					"titulo":    map[string]any{"type": "string"},
				},
				"required": []string{"data_hora"},
			},
		},
		{
			Name:        ToolTransferirHumano,
			Description: "Transfere a conversa para um atendente humano.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"motivo": map[string]any{"type": "string"},
				},
			},
		},
	}
}
