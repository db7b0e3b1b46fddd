package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler emite e valida as credenciais de serviço da superfície RPC
// interna. As chamadas core-to-core autenticam com um token JWT de curta
// duração, trocado pela chave de serviço — nunca com credencial do
// cliente final.
type AuthHandler struct {
	ServiceKeyHash string // hash bcrypt da chave de serviço
	JWTSecret      string
}

type tokenRequest struct {
	ServiceKey string `json:"service_key" binding:"required"`
}

// IssueToken troca a chave de serviço por um JWT de 1 hora.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "chave de serviço ausente"})
		return
	}

	if h.ServiceKeyHash == "" {
		// sem hash configurado, nega tudo (fail closed)
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "autenticação de serviço não configurada"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.ServiceKeyHash), []byte(req.ServiceKey)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "chave de serviço inválida"})
		return
	}

	claims := jwt.RegisteredClaims{
		Subject:   "internal-service",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "falha ao emitir token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": signed})
}

// ServiceAuthRequired valida o Bearer token das rotas internas.
func (h *AuthHandler) ServiceAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "token ausente"})
			c.Abort()
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "token inválido ou expirado"})
			c.Abort()
			return
		}
		c.Next()
	}
}
