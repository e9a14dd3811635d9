package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" env-default:"courier" validate:"required"`
	HTTPPort    string `env:"HTTP_PORT" env-default:"8080" validate:"required"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`

	Kafka    KafkaConfig
	Redis    RedisConfig
	Dispatch DispatchConfig

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// KafkaConfig feeds the shared producer, the admin client and the consumer group.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:"," validate:"required,min=1,dive,required"`
	ClientID         string        `env:"KAFKA_CLIENT_ID" env-default:"courier" validate:"required"`
	RetryMax         int           `env:"KAFKA_RETRY_MAX" env-default:"5" validate:"gte=0"`
	RetryBackoff     time.Duration `env:"KAFKA_RETRY_BACKOFF" env-default:"250ms" validate:"gt=0"`
	TopicPartitions  int32         `env:"KAFKA_TOPIC_PARTITIONS" env-default:"3" validate:"gte=1"`
	TopicReplication int16         `env:"KAFKA_TOPIC_REPLICATION" env-default:"1" validate:"gte=1"`
	ConsumerGroup    string        `env:"CONSUMER_GROUP" env-default:"courier-delivery-results-cg" validate:"required"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:"localhost:6379" validate:"required"`
	DedupTTL time.Duration `env:"DEDUP_TTL" env-default:"168h" validate:"gt=0"`
}

type DispatchConfig struct {
	PollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL" env-default:"2s" validate:"gt=0"`
	BatchSize    int           `env:"DISPATCH_BATCH_SIZE" env-default:"100" validate:"gte=1,lte=1000"`
}

var validate = validator.New()

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
