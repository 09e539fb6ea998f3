package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del cliente y del backend de
// referencia.
type Config struct {
	// Cliente.
	APIBaseURL        string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APIToken          string        `env:"API_TOKEN"`
	StreamIdleTimeout time.Duration `env:"STREAM_IDLE_TIMEOUT" envDefault:"45s"`
	TokenLimit        int           `env:"TOKEN_LIMIT" envDefault:"16000"`

	// Backend de referencia.
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	JWTSecret     string `env:"JWT_SECRET"`
	DevUserEmail  string `env:"DEV_USER_EMAIL" envDefault:"dev@example.com"`
	DevPassHash   string `env:"DEV_PASSWORD_HASH"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Generador de respuestas del backend.
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-5.1"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
