// /internal/database/database.go
package database

import (
	"fmt"
	"log"
	"os"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// ConnectDB abre a conexão com o Postgres usando a URL do ambiente
// e roda as migrações.
func ConnectDB() {
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL não encontrado no .env")
	}

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Falha ao conectar ao banco de dados usando URL: %v", err)
	}

	fmt.Println("Conexão com o banco de dados estabelecida com sucesso.")

	fmt.Println("Executando migrações do banco de dados...")
	if err := Migrate(DB); err != nil {
		log.Fatal("Falha ao executar migrações:", err)
	}
	fmt.Println("Migrações concluídas com sucesso.")
}

// Migrate roda o AutoMigrate de todas as entidades do pipeline.
// Separado de ConnectDB para os testes migrarem um banco próprio.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Tenant{}, &model.TenantNumber{}, &model.Subscription{},
		&model.Customer{}, &model.Conversation{}, &model.Message{},
		&model.Product{}, &model.Cart{}, &model.CartItem{}, &model.Coupon{},
		&model.Order{}, &model.OrderItem{}, &model.PaymentCharge{},
		&model.Appointment{}, &model.QueuedTask{},
	)
}
