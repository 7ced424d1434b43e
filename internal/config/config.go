package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration, sourced from the environment (and a
// .env file loaded by main). Empty PostgresDSN means the in-memory store;
// empty RedisAddr and KafkaBrokers disable those adapters.
type Config struct {
	ListenAddr      string
	PostgresDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTL        time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	Symbols         []string
	SelfTradePolicy string
	RateLimit       time.Duration
	AllowedOrigins  []string
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "exchange.events")
	v.SetDefault("SYMBOLS", "BTC-USDT,ETH-USDT")
	v.SetDefault("SELF_TRADE_POLICY", "SKIP")
	v.SetDefault("RATE_LIMIT", "100ms")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	cfg := &Config{
		ListenAddr:      v.GetString("LISTEN_ADDR"),
		PostgresDSN:     v.GetString("POSTGRES_DSN"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		CacheTTL:        v.GetDuration("CACHE_TTL"),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		Symbols:         splitList(v.GetString("SYMBOLS")),
		SelfTradePolicy: v.GetString("SELF_TRADE_POLICY"),
		RateLimit:       v.GetDuration("RATE_LIMIT"),
		AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
	}
	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
