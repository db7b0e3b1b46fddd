package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	require.NoError(t, VerifySignature("segredo", body, sign("segredo", body)))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	assert.Error(t, VerifySignature("segredo", body, sign("outro", body)))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"valor":100}`)
	header := sign("segredo", body)

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[10] ^= 0x01 // um bit trocado

	assert.Error(t, VerifySignature("segredo", tampered, header))
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	body := []byte(`{}`)
	assert.Error(t, VerifySignature("segredo", body, ""))
	assert.Error(t, VerifySignature("segredo", body, "md5=abc"))
	assert.Error(t, VerifySignature("segredo", body, "sha256=not-hex!"))
}

func TestVerifySignatureFailsClosedWithoutSecret(t *testing.T) {
	body := []byte(`{}`)
	// sem segredo configurado, nada passa, nem assinatura "válida" de segredo vazio
	assert.Error(t, VerifySignature("", body, sign("", body)))
}
