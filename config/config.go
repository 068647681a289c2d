package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/pkg/delivery"
	"github.com/Ramsey-B/clover/pkg/matching"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3000" validate:"gt=0,lte=65535"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"120"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	BodyLimit                     string   `env:"HTTP_SERVER_BODY_LIMIT" env-default:"2M"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"gte=1"`

	// PostgreSQL (submission archive). Empty host keeps submissions in memory only.
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseRehydrateOnStart      bool          `env:"DB_REHYDRATE_ON_START" env-default:"true"`

	// Redis (dead letter queue and delivered-pair ledger). Empty host disables both.
	RedisHost         string        `env:"REDIS_HOST" env-default:""`
	RedisPort         int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB           int           `env:"REDIS_DB" env-default:"0"`
	RedisDLQStream    string        `env:"REDIS_DLQ_STREAM" env-default:"clover:delivery-dlq"`
	RedisLedgerPrefix string        `env:"REDIS_LEDGER_PREFIX" env-default:"clover:delivered:"`
	RedisLedgerTTL    time.Duration `env:"REDIS_LEDGER_TTL" env-default:"2160h"`

	// Kafka Consumer (form submissions relayed through a topic)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"form-submissions"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Kafka Producer (match lifecycle events)
	KafkaEventsEnabled bool   `env:"KAFKA_EVENTS_ENABLED" env-default:"false"`
	KafkaOutputTopic   string `env:"KAFKA_OUTPUT_TOPIC" env-default:"match-events"`
	KafkaBatchSize     int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout  int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks  int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression   string `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`

	// Tracing
	OtelExporterEndpoint string        `env:"OTEL_EXPORTER_ENDPOINT" env-default:""`
	OtelExporterProtocol string        `env:"OTEL_EXPORTER_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OtelExporterInsecure bool          `env:"OTEL_EXPORTER_INSECURE" env-default:"true"`
	OtelExporterTimeout  time.Duration `env:"OTEL_EXPORTER_TIMEOUT" env-default:"10s"`

	// Operator auth. An empty issuer leaves the match and delivery routes open.
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:"" validate:"omitempty,url"`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:"" validate:"required_with=AuthIssuerURL"`

	// Matching
	MatchThreshold              float64       `env:"MATCH_THRESHOLD" env-default:"0.6" validate:"gte=0,lte=1"`
	MatchWeightIdentity         float64       `env:"MATCH_WEIGHT_IDENTITY" env-default:"0.5" validate:"gte=0,lte=1"`
	MatchWeightCoupleStatus     float64       `env:"MATCH_WEIGHT_COUPLE_STATUS" env-default:"0.2" validate:"gte=0,lte=1"`
	MatchWeightCaseID           float64       `env:"MATCH_WEIGHT_CASE_ID" env-default:"0.1" validate:"gte=0,lte=1"`
	MatchWeightTiming           float64       `env:"MATCH_WEIGHT_TIMING" env-default:"0.1" validate:"gte=0,lte=1"`
	MatchWeightInsuranceAmounts float64       `env:"MATCH_WEIGHT_INSURANCE_AMOUNTS" env-default:"0.1" validate:"gte=0,lte=1"`
	MatchFullTimingWindow       time.Duration `env:"MATCH_FULL_TIMING_WINDOW" env-default:"168h"`
	MatchPartialTimingWindow    time.Duration `env:"MATCH_PARTIAL_TIMING_WINDOW" env-default:"720h"`
	MatchAmountTolerance        float64       `env:"MATCH_AMOUNT_TOLERANCE" env-default:"0.05" validate:"gte=0,lte=1"`
	ExplanationCacheSize        int           `env:"EXPLANATION_CACHE_SIZE" env-default:"1000" validate:"gte=1"`

	// Delivery
	DeliveryEnabled     bool          `env:"DELIVERY_ENABLED" env-default:"false"`
	DeliveryWebhookURL  string        `env:"DELIVERY_WEBHOOK_URL" env-default:"" validate:"required_if=DeliveryEnabled true,omitempty,url"`
	DeliveryTimeout     time.Duration `env:"DELIVERY_TIMEOUT" env-default:"30s"`
	DeliveryMaxAttempts int           `env:"DELIVERY_MAX_ATTEMPTS" env-default:"3" validate:"gte=1"`
	DeliveryRetryDelay  time.Duration `env:"DELIVERY_RETRY_DELAY" env-default:"5s"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the matcher weight table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Matching().Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	// a synchronous webhook response waits for every delivery retry
	if writeTimeout := time.Duration(c.HttpServerWriteTimeoutSeconds) * time.Second; c.DeliveryEnabled && writeTimeout < c.Delivery().Budget() {
		return fmt.Errorf("invalid config: HTTP_SERVER_WRITE_TIMEOUT_SECONDS (%s) is shorter than the delivery retry budget (%s)",
			writeTimeout, c.Delivery().Budget())
	}
	return nil
}

// Delivery builds the webhook sender settings.
func (c *Config) Delivery() delivery.SenderConfig {
	return delivery.SenderConfig{
		Enabled:     c.DeliveryEnabled,
		WebhookURL:  c.DeliveryWebhookURL,
		Timeout:     c.DeliveryTimeout,
		MaxAttempts: c.DeliveryMaxAttempts,
		RetryDelay:  c.DeliveryRetryDelay,
	}
}

func (c *Config) AuthEnabled() bool {
	return c.AuthIssuerURL != ""
}

// Matching builds the matcher weight table from the flat env settings.
func (c *Config) Matching() matching.Config {
	return matching.Config{
		Threshold: c.MatchThreshold,
		Weights: []matching.Weight{
			{Signal: matching.SignalIdentity, Weight: c.MatchWeightIdentity},
			{Signal: matching.SignalCoupleStatus, Weight: c.MatchWeightCoupleStatus},
			{Signal: matching.SignalCaseID, Weight: c.MatchWeightCaseID},
			{Signal: matching.SignalTiming, Weight: c.MatchWeightTiming},
			{Signal: matching.SignalInsuranceAmounts, Weight: c.MatchWeightInsuranceAmounts},
		},
		FullTimingWindow:    c.MatchFullTimingWindow,
		PartialTimingWindow: c.MatchPartialTimingWindow,
		AmountTolerance:     c.MatchAmountTolerance,
	}
}

func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseHost != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
