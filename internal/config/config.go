package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config concentra toda a configuração lida do ambiente.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	WhatsApp WhatsAppConfig
	AI       AIConfig
	Payment  PaymentConfig
	Internal InternalConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL string
}

// WhatsAppConfig guarda os segredos globais do app Meta; as credenciais de
// envio (token, phone_number_id) são por tenant e moram no banco.
type WhatsAppConfig struct {
	VerifyToken string
	AppSecret   string
	APIVersion  string
}

type AIConfig struct {
	APIURL        string
	APIKey        string
	Model         string
	MaxIterations int
}

type PaymentConfig struct {
	MPAccessToken string
}

// InternalConfig configura a superfície RPC interna: a chave de serviço é
// verificada contra o hash bcrypt e os tokens JWT são assinados com o secret.
type InternalConfig struct {
	ServiceKeyHash string
	JWTSecret      string
}

type LimitsConfig struct {
	RateLimitMax           int
	RateLimitWindowSeconds int
}

var AppConfig *Config

// Load lê o .env (se existir) e as variáveis de ambiente e monta AppConfig.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Aviso: .env não encontrado, usando variáveis de ambiente: %v", err)
	}
	viper.AutomaticEnv()

	viper.BindEnv("PORT")
	viper.BindEnv("DATABASE_URL")
	viper.BindEnv("REDIS_URL")
	viper.BindEnv("WHATSAPP_VERIFY_TOKEN")
	viper.BindEnv("WHATSAPP_APP_SECRET")
	viper.BindEnv("WHATSAPP_API_VERSION")
	viper.BindEnv("OPENAI_API_URL")
	viper.BindEnv("OPENAI_API_KEY")
	viper.BindEnv("OPENAI_MODEL")
	viper.BindEnv("MP_ACCESS_TOKEN")
	viper.BindEnv("SERVICE_KEY_HASH")
	viper.BindEnv("SERVICE_JWT_SECRET")
	viper.BindEnv("RATE_LIMIT_MAX")
	viper.BindEnv("RATE_LIMIT_WINDOW_SECONDS")
	viper.BindEnv("AI_MAX_ITERATIONS")

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("WHATSAPP_API_VERSION", "v21.0")
	viper.SetDefault("OPENAI_API_URL", "https://api.openai.com/v1")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("RATE_LIMIT_MAX", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("AI_MAX_ITERATIONS", 5)

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{URL: viper.GetString("DATABASE_URL")},
		Redis:    RedisConfig{URL: viper.GetString("REDIS_URL")},
		WhatsApp: WhatsAppConfig{
			VerifyToken: viper.GetString("WHATSAPP_VERIFY_TOKEN"),
			AppSecret:   viper.GetString("WHATSAPP_APP_SECRET"),
			APIVersion:  viper.GetString("WHATSAPP_API_VERSION"),
		},
		AI: AIConfig{
			APIURL:        viper.GetString("OPENAI_API_URL"),
			APIKey:        viper.GetString("OPENAI_API_KEY"),
			Model:         viper.GetString("OPENAI_MODEL"),
			MaxIterations: viper.GetInt("AI_MAX_ITERATIONS"),
		},
		Payment: PaymentConfig{MPAccessToken: viper.GetString("MP_ACCESS_TOKEN")},
		Internal: InternalConfig{
			ServiceKeyHash: viper.GetString("SERVICE_KEY_HASH"),
			JWTSecret:      viper.GetString("SERVICE_JWT_SECRET"),
		},
		Limits: LimitsConfig{
			RateLimitMax:           viper.GetInt("RATE_LIMIT_MAX"),
			RateLimitWindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if AppConfig.WhatsApp.AppSecret == "" {
		log.Println("AVISO: WHATSAPP_APP_SECRET não configurado — todo o tráfego do webhook será rejeitado (fail closed).")
	}

	return AppConfig
}
