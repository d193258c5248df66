// config.go
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	MongoDBName string
	AuthURL     string
	RabbitURL   string
	RedisAddr   string
	Port        string
	ServiceName string
	LogLevel    slog.Level

	// Pricing in whole won, fixed at order creation.
	BasePrice        int64
	GiftPackagePrice int64
	MaxVideoBytes    int64

	StatusPolicy     string
	TrackingCacheTTL time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		MongoURI:         getEnv("MONGO_URI", "mongodb://host.docker.internal:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "flipbook"),
		AuthURL:          getEnv("AUTH_URL", "http://host.docker.internal:3000"),
		RabbitURL:        getEnv("RABBIT_URL", "amqp://host.docker.internal"),
		RedisAddr:        getEnv("REDIS_ADDR", "host.docker.internal:6379"),
		Port:             getEnv("PORT", "8080"),
		ServiceName:      getEnv("SERVICE_NAME", "flipbook-fulfillment"),
		LogLevel:         parseLevel(getEnv("LOG_LEVEL", "info")),
		BasePrice:        getEnvInt("BASE_PRICE", 25000),
		GiftPackagePrice: getEnvInt("GIFT_PACKAGE_PRICE", 3000),
		MaxVideoBytes:    getEnvInt("MAX_VIDEO_BYTES", 500<<20),
		StatusPolicy:     strings.ToLower(getEnv("STATUS_POLICY", "permissive")),
		TrackingCacheTTL: getEnvDuration("TRACKING_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
