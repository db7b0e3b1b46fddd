package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/service"
	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/whatsapp"
)

// ToolResult é o resultado estruturado de uma ferramenta. Falhas viram
// {success:false, error:"..."} para o modelo reagir conversacionalmente —
// nunca um erro cru estourando dentro do loop.
type ToolResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON serializa o resultado para entrar no contexto como mensagem de tool.
func (r ToolResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"falha ao serializar resultado"}`
	}
	return string(b)
}

// Scope identifica para quem a ferramenta executa. O Sender é o
// transporte de saída do tenant; nil pula os envios pós-finalização.
type Scope struct {
	Tenant         *model.Tenant
	Customer       *model.Customer
	ConversationID uint
	Sender         whatsapp.Sender
}

// Executor despacha os pedidos de ferramenta para as operações de domínio.
// Cada chamada é independente: uma falha anterior no mesmo loop não
// impede as seguintes.
type Executor struct {
	DB         *gorm.DB
	Carts      *service.CartService
	Checkout   *service.CheckoutService
	Scheduling *service.SchedulingService
	Resolver   *service.ResolverService

	validate *validator.Validate
}

func NewExecutor(db *gorm.DB, carts *service.CartService, checkout *service.CheckoutService,
	scheduling *service.SchedulingService, resolver *service.ResolverService) *Executor {
	return &Executor{
		DB:         db,
		Carts:      carts,
		Checkout:   checkout,
		Scheduling: scheduling,
		Resolver:   resolver,
		validate:   validator.New(),
	}
}

// Execute valida os argumentos e roda a operação. O switch é exaustivo
// sobre a união fechada de ToolRequest.
func (e *Executor) Execute(ctx context.Context, scope Scope, req ToolRequest) ToolResult {
	if err := e.validate.Struct(req); err != nil {
		// VerCarrinhoReq e TransferirHumanoReq não têm campos obrigatórios;
		// o validator só reclama de structs com tags
		if _, ok := err.(validator.ValidationErrors); ok {
			return ToolResult{Success: false, Error: fmt.Sprintf("argumentos inválidos: %v", err)}
		}
	}

	switch r := req.(type) {
	case *BuscarProdutosReq:
		return e.buscarProdutos(scope, r)
	case *AdicionarAoCarrinhoReq:
		return e.adicionarAoCarrinho(scope, r)
	case *VerCarrinhoReq:
		return e.verCarrinho(scope)
	case *FinalizarPedidoReq:
		return e.finalizarPedido(ctx, scope, r)
	case *AgendarVisitaReq:
		return e.agendarVisita(scope, r)
	case *TransferirHumanoReq:
		return e.transferirHumano(scope, r)
	default:
		return ToolResult{Success: false, Error: fmt.Sprintf("ferramenta não implementada: %s", req.ToolName())}
	}
}

// errResult converte erros de domínio em resultado estruturado, com
// detalhes quando for erro de validação.
func errResult(err error) ToolResult {
	if v, ok := apperr.AsValidation(err); ok {
		return ToolResult{Success: false, Error: v.Message, Data: v.Details}
	}
	log.Printf("Erro interno em ferramenta: %v", err)
	return ToolResult{Success: false, Error: "erro interno ao executar a operação"}
}

type productHit struct {
	ID        uint    `json:"id"`
	Nome      string  `json:"nome"`
	Descricao string  `json:"descricao,omitempty"`
	Preco     float64 `json:"preco"`
	Estoque   *int    `json:"estoque,omitempty"`
	Variantes any     `json:"variantes,omitempty"`
}

func (e *Executor) buscarProdutos(scope Scope, req *BuscarProdutosReq) ToolResult {
	term := "%" + strings.ToLower(strings.TrimSpace(req.Query)) + "%"
	var products []model.Product
	err := e.DB.Where("tenant_id = ? AND active = ?", scope.Tenant.ID, true).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", term, term).
		Limit(5).Find(&products).Error
	if err != nil {
		return errResult(err)
	}

	hits := make([]productHit, 0, len(products))
	for _, p := range products {
		hit := productHit{ID: p.ID, Nome: p.Name, Descricao: p.Description, Preco: p.Price}
		if p.TrackStock {
			stock := p.StockQuantity
			hit.Estoque = &stock
		}
		if len(p.Variants) > 0 {
			var variants []model.ProductVariant
			if json.Unmarshal(p.Variants, &variants) == nil {
				hit.Variantes = variants
			}
		}
		hits = append(hits, hit)
	}

	if len(hits) == 0 {
		return ToolResult{Success: true, Data: map[string]any{
			"produtos": hits,
			"mensagem": "nenhum produto encontrado para esse termo",
		}}
	}
	return ToolResult{Success: true, Data: map[string]any{"produtos": hits}}
}

func (e *Executor) adicionarAoCarrinho(scope Scope, req *AdicionarAoCarrinhoReq) ToolResult {
	cart, err := e.Carts.AddItem(scope.Tenant.ID, scope.Customer.ID, req.ProdutoID, req.VarianteID, req.Quantidade)
	if err != nil {
		return errResult(err)
	}
	return ToolResult{Success: true, Data: cartSummary(cart)}
}

func (e *Executor) verCarrinho(scope Scope) ToolResult {
	cart, err := e.Carts.GetActive(scope.Tenant.ID, scope.Customer.ID)
	if err != nil {
		return errResult(err)
	}
	if cart == nil {
		return ToolResult{Success: true, Data: map[string]any{"vazio": true, "mensagem": "o carrinho está vazio"}}
	}
	return ToolResult{Success: true, Data: cartSummary(cart)}
}

func cartSummary(cart *model.Cart) map[string]any {
	items := make([]map[string]any, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, map[string]any{
			"produto":        it.ProductName,
			"quantidade":     it.Quantity,
			"preco_unitario": it.UnitPrice,
			"subtotal":       it.Subtotal,
		})
	}
	return map[string]any{
		"itens":    items,
		"subtotal": cart.Subtotal,
		"desconto": cart.Discount,
		"frete":    cart.ShippingCost,
		"total":    cart.Total,
	}
}

func (e *Executor) finalizarPedido(ctx context.Context, scope Scope, req *FinalizarPedidoReq) ToolResult {
	// o pós-commit (cobrança + confirmação + instrução de pagamento) roda
	// dentro do checkout, pelo transporte do escopo — o cliente recebe o
	// PIX mesmo que o modelo não transcreva o resultado da ferramenta
	out, err := e.Checkout.Finalize(ctx, scope.Tenant, scope.Customer,
		scope.ConversationID, scope.Sender, req.EnderecoEntrega, req.Observacoes)
	if err != nil {
		return errResult(err)
	}

	data := map[string]any{
		"numero_pedido": out.Order.OrderNumber,
		"total":         out.Order.Total,
		"status":        string(out.Order.Status),
	}
	if out.Charge != nil {
		data["pix_copia_cola"] = out.Charge.QRCode
		data["pix_expira_em"] = out.Charge.ExpiresAt.Format(time.RFC3339)
	}
	return ToolResult{Success: true, Data: data}
}

func (e *Executor) agendarVisita(scope Scope, req *AgendarVisitaReq) ToolResult {
	at, err := parseDateTime(req.DataHora)
	if err != nil {
		return ToolResult{Success: false, Error: "data/hora inválida; use o formato AAAA-MM-DD HH:MM"}
	}

	title := req.Titulo
	if title == "" {
		title = "Visita de " + scope.Customer.Name
	}

	appt, err := e.Scheduling.ScheduleVisit(scope.Tenant, scope.Customer.ID, at, title, 60)
	if err != nil {
		return errResult(err)
	}
	return ToolResult{Success: true, Data: map[string]any{
		"agendamento_id": appt.ID,
		"data_hora":      appt.ScheduledAt.Format("02/01/2006 15:04"),
		"titulo":         appt.Title,
	}}
}

func (e *Executor) transferirHumano(scope Scope, req *TransferirHumanoReq) ToolResult {
	if err := e.Resolver.TransferToHuman(scope.ConversationID); err != nil {
		return errResult(err)
	}
	log.Printf("Conversa %d transferida para humano (motivo: %s)", scope.ConversationID, req.Motivo)
	return ToolResult{Success: true, Data: map[string]any{
		"mensagem": "conversa transferida para um atendente humano",
	}}
}

// parseDateTime aceita RFC 3339 ou o formato local "2006-01-02 15:04".
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}
