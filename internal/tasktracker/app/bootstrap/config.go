package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int

	DatabaseURL     string
	RedisURL        string
	IdentityBaseURL string
	KafkaBrokers    []string

	MaxDBConns         int32
	KafkaConsumerGroup string
	KafkaTopicAccounts string
	KafkaTopicTasks    string

	IdentityTimeout     time.Duration
	IdentityCacheMaxTTL time.Duration
	EventDedupTTL       time.Duration

	ConsumerPollInterval time.Duration
	ConsumerRetryBackoff time.Duration
	ConsumerMaxAttempts  int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL        string   `yaml:"postgres_url"`
		RedisURL           string   `yaml:"redis_url"`
		IdentityBaseURL    string   `yaml:"identity_base_url"`
		KafkaBrokers       []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`
		KafkaTopicAccounts string   `yaml:"kafka_topic_accounts"`
		KafkaTopicTasks    string   `yaml:"kafka_topic_tasks"`
	} `yaml:"dependencies"`
	Identity struct {
		TimeoutSeconds     int `yaml:"timeout_seconds"`
		CacheMaxTTLMinutes int `yaml:"cache_max_ttl_minutes"`
	} `yaml:"identity"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "tasktracker",
		HTTPPort:             8081,
		MaxDBConns:           20,
		KafkaConsumerGroup:   "tasktracker-projector",
		KafkaTopicAccounts:   "identity.accounts",
		KafkaTopicTasks:      "tasktracker.tasks",
		IdentityTimeout:      5 * time.Second,
		IdentityCacheMaxTTL:  time.Hour,
		EventDedupTTL:        7 * 24 * time.Hour,
		ConsumerPollInterval: 2 * time.Second,
		ConsumerRetryBackoff: 500 * time.Millisecond,
		ConsumerMaxAttempts:  5,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		OutboxClaimTTL:       30 * time.Second,
		OutboxMaxRetries:     5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.IdentityBaseURL != "" {
			cfg.IdentityBaseURL = f.Dependencies.IdentityBaseURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicAccounts != "" {
			cfg.KafkaTopicAccounts = f.Dependencies.KafkaTopicAccounts
		}
		if f.Dependencies.KafkaTopicTasks != "" {
			cfg.KafkaTopicTasks = f.Dependencies.KafkaTopicTasks
		}
		if f.Identity.TimeoutSeconds > 0 {
			cfg.IdentityTimeout = time.Duration(f.Identity.TimeoutSeconds) * time.Second
		}
		if f.Identity.CacheMaxTTLMinutes > 0 {
			cfg.IdentityCacheMaxTTL = time.Duration(f.Identity.CacheMaxTTLMinutes) * time.Minute
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.IdentityBaseURL = envOrDefault("IDENTITY_BASE_URL", cfg.IdentityBaseURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicAccounts = envOrDefault("KAFKA_TOPIC_ACCOUNTS", cfg.KafkaTopicAccounts)
	cfg.KafkaTopicTasks = envOrDefault("KAFKA_TOPIC_TASKS", cfg.KafkaTopicTasks)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.IdentityTimeout = time.Duration(envInt("IDENTITY_TIMEOUT_SECONDS", int(cfg.IdentityTimeout.Seconds()))) * time.Second
	cfg.IdentityCacheMaxTTL = time.Duration(envInt("IDENTITY_CACHE_MAX_TTL_MINUTES", int(cfg.IdentityCacheMaxTTL.Minutes()))) * time.Minute
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.ConsumerRetryBackoff = time.Duration(envInt("CONSUMER_RETRY_BACKOFF_MS", int(cfg.ConsumerRetryBackoff.Milliseconds()))) * time.Millisecond
	cfg.ConsumerMaxAttempts = envInt("CONSUMER_MAX_ATTEMPTS", cfg.ConsumerMaxAttempts)
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.IdentityBaseURL == "" {
		return Config{}, fmt.Errorf("missing IDENTITY_BASE_URL")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
