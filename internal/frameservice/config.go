package frameservice

import (
	"log"
	"os"
	"strconv"
	"strings"

	"stockrobotv1/internal/indicator"
)

// Config holds all env-parsed configuration for the frame engine service.
type Config struct {
	RedisAddr         string
	RedisPassword     string
	SQLitePath        string
	ConsumerGroup     string
	ConsumerName      string
	Symbols           []string
	SnapshotIntervalS int
	SnapshotKey       string
	HTTPAddr          string
	MetricsAddr       string
	IndicatorSpecs    []indicator.Record
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	sqlitePath := getEnv("SQLITE_PATH", "data/bars.db")
	consumerGroup := getEnv("CONSUMER_GROUP", "frameengine")
	consumerName := getEnv("CONSUMER_NAME", "worker-1")
	symbolsStr := getEnv("SYMBOLS", "")
	snapshotIntervalStr := getEnv("SNAPSHOT_INTERVAL_SEC", "30")
	snapshotKey := getEnv("SNAPSHOT_KEY", "ind:snapshot:registry")
	httpAddr := getEnv("FRAMEENGINE_HTTP_ADDR", ":9095")
	metricsAddr := getEnv("METRICS_ADDR", ":9096")

	snapshotInterval, _ := strconv.Atoi(snapshotIntervalStr)
	if snapshotInterval <= 0 {
		snapshotInterval = 30
	}

	return Config{
		RedisAddr:         redisAddr,
		RedisPassword:     redisPassword,
		SQLitePath:        sqlitePath,
		ConsumerGroup:     consumerGroup,
		ConsumerName:      consumerName,
		Symbols:           parseSymbols(symbolsStr),
		SnapshotIntervalS: snapshotInterval,
		SnapshotKey:       snapshotKey,
		HTTPAddr:          httpAddr,
		MetricsAddr:       metricsAddr,
		IndicatorSpecs:    ParseIndicatorSpecs(getEnv("INDICATOR_CONFIGS", "")),
	}
}

// ParseIndicatorSpecs parses "KIND:PERIOD,..." into indicator records.
// Example: "sma:20,ema:9,rsi:14,change". The parameterless change_in_price
// indicator is written as just "change" or "change_in_price".
// Returns defaults if input is empty.
func ParseIndicatorSpecs(s string) []indicator.Record {
	if s == "" {
		return []indicator.Record{
			{Name: indicator.ColChangeInPrice, Kind: indicator.KindChangeInPrice},
			{Name: indicator.ColSMA, Kind: indicator.KindSMA, Params: indicator.Params{Period: 20}},
			{Name: indicator.ColEMA, Kind: indicator.KindEMA, Params: indicator.Params{Period: 9}},
			{Name: indicator.ColRSI, Kind: indicator.KindRSI, Params: indicator.Params{Period: 14, Method: indicator.MethodWilders}},
		}
	}

	var specs []indicator.Record
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.SplitN(part, ":", 2)
		kind := strings.ToLower(strings.TrimSpace(tokens[0]))

		if kind == "change" || kind == string(indicator.KindChangeInPrice) {
			specs = append(specs, indicator.Record{Name: indicator.ColChangeInPrice, Kind: indicator.KindChangeInPrice})
			continue
		}

		if len(tokens) != 2 {
			log.Printf("[frameservice] skipping invalid indicator spec: %q", part)
			continue
		}
		period, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil || period <= 0 {
			log.Printf("[frameservice] skipping invalid indicator spec: %q", part)
			continue
		}

		switch indicator.Kind(kind) {
		case indicator.KindSMA:
			specs = append(specs, indicator.Record{Name: indicator.ColSMA, Kind: indicator.KindSMA, Params: indicator.Params{Period: period}})
		case indicator.KindEMA:
			specs = append(specs, indicator.Record{Name: indicator.ColEMA, Kind: indicator.KindEMA, Params: indicator.Params{Period: period}})
		case indicator.KindRSI:
			specs = append(specs, indicator.Record{Name: indicator.ColRSI, Kind: indicator.KindRSI, Params: indicator.Params{Period: period, Method: indicator.MethodWilders}})
		default:
			log.Printf("[frameservice] skipping unknown indicator kind: %q", part)
		}
	}
	if len(specs) == 0 {
		log.Println("[frameservice] WARNING: no valid indicators parsed, using defaults")
		return ParseIndicatorSpecs("")
	}
	log.Printf("[frameservice] loaded %d indicator specs from INDICATOR_CONFIGS", len(specs))
	return specs
}

func parseSymbols(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
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

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
