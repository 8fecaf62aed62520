package internal

import (
	"chat-sync/session"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNats     = "nats"
	BackendEmbedded = "embedded"
)

type Config struct {
	LogLevel     string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	StoreBackend string `env:"STORE_BACKEND,default=embedded" validate:"oneof=postgres redis nats embedded"`

	DatabaseURL     string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	DBMaxConns      int    `env:"DB_MAX_CONNS,default=4" validate:"min=2"`
	PgNotifyChannel string `env:"PG_NOTIFY_CHANNEL,default=messages_inserted" validate:"required"`
	PgEnsureSchema  bool   `env:"PG_ENSURE_SCHEMA,default=false"`

	RedisURL    string `env:"REDIS_URL" validate:"required_if=StoreBackend redis"`
	RedisStream string `env:"REDIS_STREAM,default=chat:messages" validate:"required"`

	NatsURL     string `env:"NATS_URL" validate:"required_if=StoreBackend nats"`
	NatsStream  string `env:"NATS_STREAM,default=CHAT_MESSAGES" validate:"required"`
	NatsSubject string `env:"NATS_SUBJECT,default=chat.messages" validate:"required"`

	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/chat" validate:"required_if=StoreBackend embedded"`
	SnowflakeNode  int64  `env:"SNOWFLAKE_NODE,default=1" validate:"min=0,max=1023"`
	DebugPort      int    `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`

	IdentityFile string `env:"IDENTITY_FILE,default=.chat-identity"`
	Colours      bool   `env:"COLOURS,default=true"`

	QueueSize                int           `env:"QUEUE_SIZE,default=256" validate:"min=1"`
	HistoryTimeout           time.Duration `env:"HISTORY_TIMEOUT,default=10s" validate:"gt=0"`
	SendTimeout              time.Duration `env:"SEND_TIMEOUT,default=5s" validate:"gt=0"`
	MetricInterval           time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	ReconnectMaxAttempts     int           `env:"RECONNECT_MAX_ATTEMPTS,default=5" validate:"min=0"`
	ReconnectInitialInterval time.Duration `env:"RECONNECT_INITIAL_INTERVAL,default=500ms" validate:"gt=0"`
	ReconnectMaxInterval     time.Duration `env:"RECONNECT_MAX_INTERVAL,default=30s" validate:"gtefield=ReconnectInitialInterval"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) ReconnectPolicy() session.ReconnectPolicy {
	return session.ReconnectPolicy{
		MaxAttempts:     c.ReconnectMaxAttempts,
		InitialInterval: c.ReconnectInitialInterval,
		MaxInterval:     c.ReconnectMaxInterval,
	}
}
