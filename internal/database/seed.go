// /internal/database/seed.go
package database

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Mateusjonees/agenda-flow-bot-sub002/internal/model"
)

// SeedDemoTenant cria um tenant de demonstração com assinatura em trial,
// número vinculado e alguns produtos, se ainda não existir.
func SeedDemoTenant() {
	var tenant model.Tenant
	result := DB.Where("business_name = ?", "Loja Demo").First(&tenant)

	if result.Error != nil && result.Error == gorm.ErrRecordNotFound {
		log.Println("Tenant demo não encontrado, criando um novo...")

		tenant = model.Tenant{
			BusinessName:  "Loja Demo",
			AssistantName: "Ana",
			Personality:   "atenciosa e objetiva",
			Tone:          "amigável",
			Greeting:      "Olá! Bem-vindo à Loja Demo 👋",
			Farewell:      "Obrigada pela preferência!",
			Guidelines:    "Nunca prometa prazos de entrega que não estão no catálogo.",
			OpenHour:      "09:00",
			CloseHour:     "18:00",
		}
		if err := DB.Create(&tenant).Error; err != nil {
			log.Fatalf("Falha ao criar o tenant demo: %v", err)
		}

		sub := model.Subscription{
			TenantID:        tenant.ID,
			Status:          model.SubscriptionTrial,
			StartDate:       time.Now(),
			NextBillingDate: time.Now().AddDate(0, 1, 0),
		}
		if err := DB.Create(&sub).Error; err != nil {
			log.Fatalf("Falha ao criar a assinatura demo: %v", err)
		}

		produtos := []model.Product{
			{TenantID: tenant.ID, Name: "Camiseta Azul", Price: 49.90, SKU: "CAM-AZ", Active: true, TrackStock: true, StockQuantity: 50},
			{TenantID: tenant.ID, Name: "Camiseta Preta", Price: 49.90, SKU: "CAM-PR", Active: true, TrackStock: true, StockQuantity: 30},
			{TenantID: tenant.ID, Name: "Caneca Personalizada", Price: 29.90, SKU: "CAN-01", Active: true},
		}
		for _, p := range produtos {
			if err := DB.Create(&p).Error; err != nil {
				log.Fatalf("Falha ao criar produto demo: %v", err)
			}
		}

		log.Println("Tenant demo criado com sucesso.")
	} else {
		log.Println("Tenant demo já existe.")
	}
}
