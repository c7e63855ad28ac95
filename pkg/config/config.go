package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hookflow-go/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Logger   logger.Config  `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`
	WriteTimeout    int `mapstructure:"write_timeout"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ExecutorConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

// WebhookConfig tunes the ingestion pipeline.
type WebhookConfig struct {
	// AckTimeoutMS is the fixed deadline for the response race. Providers
	// expect an acknowledgement well within their own webhook timeouts.
	AckTimeoutMS int `mapstructure:"ack_timeout_ms"`
	// DedupeTTLHours applies to durable provider-native message ids.
	DedupeTTLHours int `mapstructure:"dedupe_ttl_hours"`
	// GenericDedupeTTLMinutes applies to request-hash keys, which only need
	// to absorb short retry bursts.
	GenericDedupeTTLMinutes int `mapstructure:"generic_dedupe_ttl_minutes"`
	LockTTLSeconds          int `mapstructure:"lock_ttl_seconds"`
	MaxBackgroundTasks      int `mapstructure:"max_background_tasks"`
}

func (c WebhookConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

func (c WebhookConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLHours) * time.Hour
}

func (c WebhookConfig) GenericDedupeTTL() time.Duration {
	return time.Duration(c.GenericDedupeTTLMinutes) * time.Minute
}

func (c WebhookConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func Load(serviceName string) (*Config, error) {
	viper.SetConfigName(serviceName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/hookflow")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("HOOKFLOW")

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, defaults and env vars cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8085)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "hookflow")
	viper.SetDefault("database.password", "hookflow")
	viper.SetDefault("database.name", "hookflow")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "hookflow.webhook.events")

	viper.SetDefault("executor.base_url", "http://localhost:8090")
	viper.SetDefault("executor.request_timeout", 300)

	viper.SetDefault("webhook.ack_timeout_ms", 2500)
	viper.SetDefault("webhook.dedupe_ttl_hours", 24)
	viper.SetDefault("webhook.generic_dedupe_ttl_minutes", 10)
	viper.SetDefault("webhook.lock_ttl_seconds", 30)
	viper.SetDefault("webhook.max_background_tasks", 1024)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.add_caller", true)
}
