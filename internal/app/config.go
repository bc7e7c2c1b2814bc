package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/shopbilling/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/cache"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	LogFormatText = "text"
	LogFormatJSON = "json"

	envPrefix = "SHOP"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr включает кеш цен каталога; пустое значение отключает кеш.
	RedisAddr     string
	PriceCacheTTL time.Duration

	// KafkaBrokers — список брокеров через запятую; пустое значение
	// переключает outbox на публикацию в лог.
	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	// OutboxRetention — срок хранения обработанных сообщений outbox.
	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration

	// TimeZone — часовой пояс для поиска счетов по дате.
	TimeZone  string
	LogLevel  string
	LogFormat string
	SeedDemo  bool
}

// DefaultConfig возвращает настройки для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:              ":50051",
		MetricsAddr:           ":9090",
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		PriceCacheTTL:         cache.DefaultPriceTTL,
		KafkaTopic:            kafka.TopicBillEvents,
		KafkaDLQTopic:         kafka.TopicDeadLetterQueue,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      100 * time.Millisecond,
		OutboxMaxPending:      1000,
		OutboxRetention:       7 * 24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		TimeZone:              "UTC",
		LogLevel:              "info",
		LogFormat:             LogFormatText,
		SeedDemo:              true,
	}
}

// LoadConfig читает настройки из переменных окружения SHOP_* и
// необязательного файла shop-billing.yaml.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName("shop-billing")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/shop-billing")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return LoadConfigFrom(v)
}

// LoadConfigFrom собирает Config из переданного viper.
func LoadConfigFrom(v *viper.Viper) (Config, error) {
	defaults := DefaultConfig()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("grpc.addr", defaults.GRPCAddr)
	v.SetDefault("metrics.addr", defaults.MetricsAddr)
	v.SetDefault("storage.driver", defaults.StorageDriver)
	v.SetDefault("postgres.dsn", defaults.PostgresDSN)
	v.SetDefault("postgres.auto_migrate", defaults.PostgresAutoMigrate)
	v.SetDefault("redis.addr", defaults.RedisAddr)
	v.SetDefault("redis.price_ttl", defaults.PriceCacheTTL)
	v.SetDefault("kafka.brokers", defaults.KafkaBrokers)
	v.SetDefault("kafka.topic", defaults.KafkaTopic)
	v.SetDefault("kafka.dlq_topic", defaults.KafkaDLQTopic)
	v.SetDefault("outbox.poll_interval", defaults.OutboxPollInterval)
	v.SetDefault("outbox.batch_size", defaults.OutboxBatchSize)
	v.SetDefault("outbox.max_attempts", defaults.OutboxMaxAttempts)
	v.SetDefault("outbox.retry_delay", defaults.OutboxRetryDelay)
	v.SetDefault("outbox.max_pending", defaults.OutboxMaxPending)
	v.SetDefault("outbox.retention", defaults.OutboxRetention)
	v.SetDefault("outbox.cleanup_interval", defaults.OutboxCleanupInterval)
	v.SetDefault("time_zone", defaults.TimeZone)
	v.SetDefault("log.level", defaults.LogLevel)
	v.SetDefault("log.format", defaults.LogFormat)
	v.SetDefault("seed.demo", defaults.SeedDemo)

	cfg := Config{
		GRPCAddr:              v.GetString("grpc.addr"),
		MetricsAddr:           v.GetString("metrics.addr"),
		StorageDriver:         strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		PostgresDSN:           strings.TrimSpace(v.GetString("postgres.dsn")),
		PostgresAutoMigrate:   v.GetBool("postgres.auto_migrate"),
		RedisAddr:             strings.TrimSpace(v.GetString("redis.addr")),
		PriceCacheTTL:         v.GetDuration("redis.price_ttl"),
		KafkaBrokers:          strings.TrimSpace(v.GetString("kafka.brokers")),
		KafkaTopic:            v.GetString("kafka.topic"),
		KafkaDLQTopic:         v.GetString("kafka.dlq_topic"),
		OutboxPollInterval:    v.GetDuration("outbox.poll_interval"),
		OutboxBatchSize:       v.GetInt("outbox.batch_size"),
		OutboxMaxAttempts:     v.GetInt("outbox.max_attempts"),
		OutboxRetryDelay:      v.GetDuration("outbox.retry_delay"),
		OutboxMaxPending:      v.GetInt("outbox.max_pending"),
		OutboxRetention:       v.GetDuration("outbox.retention"),
		OutboxCleanupInterval: v.GetDuration("outbox.cleanup_interval"),
		TimeZone:              v.GetString("time_zone"),
		LogLevel:              v.GetString("log.level"),
		LogFormat:             strings.ToLower(v.GetString("log.format")),
		SeedDemo:              v.GetBool("seed.demo"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be > 0"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be > 0"))
	}
	if c.OutboxRetention < 0 {
		errs = append(errs, errors.New("outbox retention must be >= 0"))
	}

	return errors.Join(errs...)
}

// Location возвращает часовой пояс поиска по дате; при ошибке — UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil || c.TimeZone == "" {
		return time.UTC
	}
	return loc
}

// Brokers разбирает KafkaBrokers в список адресов.
func (c Config) Brokers() []string {
	return splitBrokers(c.KafkaBrokers)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
