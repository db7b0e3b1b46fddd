package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/apperr"
)

const signaturePrefix = "sha256="

// VerifySignature valida o HMAC-SHA256 do corpo cru do webhook contra o
// header X-Hub-Signature-256 ("sha256=<hex>"). Comparação em tempo
// constante. Sem segredo configurado, rejeita tudo (fail closed): um
// segredo é pré-condição para qualquer processamento.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return &apperr.AuthenticationError{Reason: "segredo de assinatura não configurado"}
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return &apperr.AuthenticationError{Reason: "header de assinatura ausente ou malformado"}
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return &apperr.AuthenticationError{Reason: "assinatura não é hex válido"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return &apperr.AuthenticationError{Reason: "assinatura não confere"}
	}
	return nil
}
