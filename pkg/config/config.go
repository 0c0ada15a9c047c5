package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the engine reads. Values come from the
// environment, with an optional .env file for local development.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	HTTPPort    string

	DB    DBConfig
	Redis RedisConfig
	Kafka KafkaConfig

	// Engine tuning.
	ReservationTTL    time.Duration
	CartTTL           time.Duration
	SweepInterval     time.Duration
	LockWait          time.Duration
	DistributedLocks  bool
	LockLeaseTTL      time.Duration
	MinOrderValue     float64
	MaxOrderValue     float64
	MaxItemsPerOrder  int
	JaegerEndpoint    string
	TracingEnabled    bool
	ConsumerGroupID   string
	EventDedupEnabled bool
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: getEnv("SERVICE_NAME", "inventory-engine"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8085"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "inventorydb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		ReservationTTL:    getEnvDuration("RESERVATION_TTL", 30*time.Minute),
		CartTTL:           getEnvDuration("CART_TTL", 24*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		LockWait:          getEnvDuration("LOCK_WAIT", 5*time.Second),
		DistributedLocks:  getEnvBool("DISTRIBUTED_LOCKS", false),
		LockLeaseTTL:      getEnvDuration("LOCK_LEASE_TTL", 15*time.Second),
		MinOrderValue:     getEnvFloat("MIN_ORDER_VALUE", 0),
		MaxOrderValue:     getEnvFloat("MAX_ORDER_VALUE", 1_000_000),
		MaxItemsPerOrder:  getEnvInt("MAX_ITEMS_PER_ORDER", 100),
		JaegerEndpoint:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		TracingEnabled:    getEnvBool("TRACING_ENABLED", true),
		ConsumerGroupID:   getEnv("CONSUMER_GROUP_ID", "inventory-engine"),
		EventDedupEnabled: getEnvBool("EVENT_DEDUP_ENABLED", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
