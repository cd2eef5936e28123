package config

import (
	"log"
	"os"
	"strings"
)

// Config holds broker credentials and infrastructure settings loaded from
// environment variables. Service-level knobs live in frameservice.Config.
type Config struct {
	// Broker credentials
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPassword   string
	BrokerTOTPSecret string
	BrokerBaseURL    string
	BrokerStreamURL  string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Subscription
	Symbols string
}

// Load reads configuration from environment variables with sensible defaults.
// Broker credentials are required; everything else falls back.
func Load() *Config {
	return &Config{
		BrokerAPIKey:     mustEnv("BROKER_API_KEY"),
		BrokerClientCode: mustEnv("BROKER_CLIENT_CODE"),
		BrokerPassword:   mustEnv("BROKER_PASSWORD"),
		BrokerTOTPSecret: mustEnv("BROKER_TOTP_SECRET"),
		BrokerBaseURL:    getEnv("BROKER_BASE_URL", ""),
		BrokerStreamURL:  getEnv("BROKER_STREAM_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9096"),

		Symbols: getEnv("SYMBOLS", "AAPL,MSFT"),
	}
}

// ParseSymbols splits the Symbols string into normalized ticker symbols.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
