package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	MaxRounds       int
	ScenariosDir    string
	APIToken        string
}

func Load() Config {
	return Config{
		Port:            envInt("PARLEY_PORT", 8760),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("PARLEY_MODEL", "claude-sonnet-4-20250514"),
		MaxRounds:       envInt("PARLEY_MAX_ROUNDS", 10),
		ScenariosDir:    envStr("PARLEY_SCENARIOS_DIR", "scenarios"),
		APIToken:        envStr("PARLEY_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
