package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	VideoSearch VideoSearchConfig
	App         AppConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
	DB   int
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

type VideoSearchConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AppConfig struct {
	// PublicBaseURL is the externally reachable URL phones hit when they
	// scan the join QR code on the TV display.
	PublicBaseURL string
	// DefaultInstanceTTL bounds how long an event instance stays open
	// when the coordinator does not pick a TTL.
	DefaultInstanceTTL time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		VideoSearch: VideoSearchConfig{
			BaseURL: getEnv("VIDEO_SEARCH_URL", ""),
			Timeout: time.Duration(getEnvInt("VIDEO_SEARCH_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		App: AppConfig{
			PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8086"),
			DefaultInstanceTTL: time.Duration(getEnvInt("INSTANCE_TTL_HOURS", 12)) * time.Hour,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
