package webhook

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ChargeConfirmer confirma uma cobrança a partir do id de pagamento do
// provedor.
type ChargeConfirmer interface {
	MarkPaid(providerPaymentID int64) error
}

// PaymentHandler recebe as notificações de pagamento do Mercado Pago
// (notification_url configurada na conta). O provedor reenvia enquanto
// não receber 200, então respondemos 200 mesmo para ids desconhecidos.
type PaymentHandler struct {
	Charges ChargeConfirmer
}

type mpNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Notify trata o POST de notificação. Só o evento "payment" interessa;
// os demais tópicos são confirmados e ignorados.
func (h *PaymentHandler) Notify(c *gin.Context) {
	var notif mpNotification
	if err := c.ShouldBindJSON(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notificação inválida"})
		return
	}

	if notif.Type != "payment" {
		c.Status(http.StatusOK)
		return
	}

	paymentID, err := strconv.ParseInt(notif.Data.ID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id de pagamento inválido"})
		return
	}

	if err := h.Charges.MarkPaid(paymentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Notificação de pagamento sem cobrança correspondente: %d", paymentID)
			c.Status(http.StatusOK)
			return
		}
		log.Printf("Erro ao confirmar pagamento %d: %v", paymentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro ao confirmar pagamento"})
		return
	}

	c.Status(http.StatusOK)
}
