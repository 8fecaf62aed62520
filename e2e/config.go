package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_STORE_BACKEND selects the store the scenarios run against
	Backend     string `envconfig:"E2E_STORE_BACKEND" default:"embedded"`
	DatabaseURL string `envconfig:"E2E_DATABASE_URL"`
	RedisURL    string `envconfig:"E2E_REDIS_URL"`
	NatsURL     string `envconfig:"E2E_NATS_URL"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours  bool   `envconfig:"E2E_COLOURS" default:"true"`
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
