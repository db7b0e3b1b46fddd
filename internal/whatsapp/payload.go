package whatsapp

// Tipos do envelope de eventos do webhook do WhatsApp Cloud API.
// Cada entry traz uma ou mais changes; cada change carrega ou um array de
// messages (mensagens novas) ou um array de statuses (callbacks de entrega).

type WebhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage é uma mensagem recebida, com payload específico por tipo.
type InboundMessage struct {
	ID        string `json:"id"` // id atribuído pelo transporte (wamid)
	From      string `json:"from"`
	Timestamp string `json:"timestamp"` // unix epoch em string
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image       *MediaPayload `json:"image,omitempty"`
	Video       *MediaPayload `json:"video,omitempty"`
	Document    *MediaPayload `json:"document,omitempty"`
	Audio       *MediaPayload `json:"audio,omitempty"`
	Location    *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name,omitempty"`
	} `json:"location,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

type MediaPayload struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// StatusUpdate é um callback de estado de entrega de uma mensagem enviada.
type StatusUpdate struct {
	ID          string `json:"id"` // wamid da mensagem enviada
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"` // sent | delivered | read | failed
	Timestamp   string `json:"timestamp"`
	Errors      []struct {
		Code    int    `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message,omitempty"`
	} `json:"errors,omitempty"`
}

// TextContent extrai o conteúdo textual da mensagem conforme o tipo.
func (m *InboundMessage) TextContent() string {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return m.Text.Body
		}
	case "interactive":
		if m.Interactive != nil {
			if m.Interactive.ButtonReply != nil {
				return m.Interactive.ButtonReply.Title
			}
			if m.Interactive.ListReply != nil {
				return m.Interactive.ListReply.Title
			}
		}
	case "image", "video", "document", "audio":
		if p := m.mediaPayload(); p != nil {
			return p.Caption
		}
	}
	return ""
}

func (m *InboundMessage) mediaPayload() *MediaPayload {
	switch m.Type {
	case "image":
		return m.Image
	case "video":
		return m.Video
	case "document":
		return m.Document
	case "audio":
		return m.Audio
	}
	return nil
}
