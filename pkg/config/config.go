package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Kafka     KafkaConfig
	Trust     TrustConfig
	Scheduler SchedulerConfig
	Queue     QueueConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// KafkaConfig controls outbound notification events. Empty brokers disables publishing.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

// TrustConfig tunes score computation and batch behaviour.
type TrustConfig struct {
	CacheTTL         time.Duration
	BatchConcurrency int
	BatchItemTimeout time.Duration
	LockTTL          time.Duration
}

// SchedulerConfig holds the cron expressions for periodic sweeps.
type SchedulerConfig struct {
	Enabled           bool
	TrustScoreCron    string
	SanctionsCron     string
	CleanupCron       string
	AppealOverdueCron string
	JobTimeout        time.Duration
}

// QueueConfig configures the in-process worker pool used for async jobs.
type QueueConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// ReportsConfig configures admin report exports.
type ReportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:   v.GetBool("ENABLE_REDIS"),
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers:           splitAndTrim(v.GetString("KAFKA_BROKERS")),
		NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
	}

	concurrency := v.GetInt("TRUST_BATCH_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 1
	}
	cfg.Trust = TrustConfig{
		CacheTTL:         parseDuration(v.GetString("TRUST_SCORE_CACHE_TTL"), 10*time.Minute),
		BatchConcurrency: concurrency,
		BatchItemTimeout: parseDuration(v.GetString("TRUST_BATCH_ITEM_TIMEOUT"), 30*time.Second),
		LockTTL:          parseDuration(v.GetString("PROMOTEUR_LOCK_TTL"), 30*time.Second),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:           v.GetBool("ENABLE_SCHEDULER"),
		TrustScoreCron:    v.GetString("TRUST_SCORE_CRON"),
		SanctionsCron:     v.GetString("AUTOMATED_SANCTIONS_CRON"),
		CleanupCron:       v.GetString("RESTRICTION_CLEANUP_CRON"),
		AppealOverdueCron: v.GetString("APPEAL_OVERDUE_CRON"),
		JobTimeout:        parseDuration(v.GetString("SCHEDULER_JOB_TIMEOUT"), 30*time.Minute),
	}

	cfg.Queue = QueueConfig{
		Workers:    v.GetInt("QUEUE_WORKERS"),
		Retries:    v.GetInt("QUEUE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("QUEUE_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Reports = ReportsConfig{
		Enabled:         v.GetBool("ENABLE_REPORTS"),
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "promoteur_trust")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "promoteur-trust")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "promoteur-platform")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "notifications.outbound")

	v.SetDefault("TRUST_SCORE_CACHE_TTL", "10m")
	v.SetDefault("TRUST_BATCH_CONCURRENCY", 4)
	v.SetDefault("TRUST_BATCH_ITEM_TIMEOUT", "30s")
	v.SetDefault("PROMOTEUR_LOCK_TTL", "30s")

	v.SetDefault("ENABLE_SCHEDULER", false)
	v.SetDefault("TRUST_SCORE_CRON", "0 3 * * *")
	v.SetDefault("AUTOMATED_SANCTIONS_CRON", "0 6 * * *")
	v.SetDefault("RESTRICTION_CLEANUP_CRON", "15 * * * *")
	v.SetDefault("APPEAL_OVERDUE_CRON", "*/30 * * * *")
	v.SetDefault("SCHEDULER_JOB_TIMEOUT", "30m")

	v.SetDefault("QUEUE_WORKERS", 2)
	v.SetDefault("QUEUE_RETRIES", 3)
	v.SetDefault("QUEUE_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
