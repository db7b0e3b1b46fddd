// /internal/database/redis.go
package database

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

// ConnectRedis inicializa o cliente Redis usado para dedupe de avisos
// (throttle, assinatura inativa). Opcional: sem REDIS_URL o pipeline
// segue funcionando, só perde o dedupe entre instâncias.
func ConnectRedis() {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		log.Println("Aviso: REDIS_URL não configurado, avisos únicos serão deduplicados apenas por instância.")
		return
	}

	Redis = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	log.Println("Redis inicializado:", addr)
}
