package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
)

// Sender é o contrato do mensageiro de saída. O pipeline só depende disto,
// o que permite trocar o transporte por um fake nos testes.
type Sender interface {
	SendText(ctx context.Context, to, body string) (wamID string, err error)
	SendImage(ctx context.Context, to, imageURL, caption string) (wamID string, err error)
	SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button) (wamID string, err error)
}

// Button é um botão de resposta rápida de mensagem interativa.
type Button struct {
	ID    string
	Title string
}

// Client fala com o WhatsApp Cloud API de um tenant.
type Client struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	APIVersion    string
	HTTPClient    *http.Client
}

// NewClient monta um cliente com as credenciais do tenant.
func NewClient(phoneNumberID, accessToken, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = "v21.0"
	}
	return &Client{
		BaseURL:       "https://graph.facebook.com",
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		APIVersion:    apiVersion,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

const maxSendAttempts = 2

// SendText envia uma mensagem de texto simples.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	}
	return c.send(ctx, payload)
}

// SendImage envia uma imagem por URL com legenda opcional.
func (c *Client) SendImage(ctx context.Context, to, imageURL, caption string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]any{"link": imageURL, "caption": caption},
	}
	return c.send(ctx, payload)
}

// SendInteractiveButtons envia uma mensagem interativa com até 3 botões.
func (c *Client) SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button) (string, error) {
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type":  "reply",
			"reply": map[string]any{"id": b.ID, "title": b.Title},
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": btns},
		},
	}
	return c.send(ctx, payload)
}

// send faz o POST em /{version}/{phone_number_id}/messages com retry limitado.
func (c *Client) send(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.BaseURL, c.APIVersion, c.PhoneNumberID)

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			lastErr = fmt.Errorf("resposta inválida do transporte: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(parsed.Messages) > 0 {
			return parsed.Messages[0].ID, nil
		}

		if parsed.Error != nil {
			lastErr = fmt.Errorf("erro %d do transporte: %s", parsed.Error.Code, parsed.Error.Message)
		} else {
			lastErr = fmt.Errorf("status HTTP %d do transporte", resp.StatusCode)
		}
		// 4xx não é recuperável, não vale retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}

	return "", apperr.External("whatsapp", lastErr)
}
