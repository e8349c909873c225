package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the process needs from the environment.
type Config struct {
	ListenAddr string

	// Chain
	RPCURL          string
	ChainID         int64
	CurveAddress    string
	OperatorKey     string  // hex, pays auto-funding top-ups
	TopUpAmountUSDT float64 // fixed amount per top-up

	// Persistence; empty DatabaseURL falls back to in-memory stores.
	DatabaseURL string
}

// Load reads the configuration from .env (if present) and the
// environment. Chain settings are mandatory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional in deployed environments.
	}

	cfg := &Config{
		ListenAddr:      envOrDefault("LISTEN_ADDR", ":8080"),
		RPCURL:          strings.TrimSpace(os.Getenv("RPC_URL")),
		ChainID:         envInt64("CHAIN_ID", 1),
		CurveAddress:    strings.TrimSpace(os.Getenv("CURVE_ADDRESS")),
		OperatorKey:     strings.TrimSpace(os.Getenv("OPERATOR_PRIVATE_KEY")),
		TopUpAmountUSDT: envFloat("TOPUP_AMOUNT_USDT", 0.05),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL must be set")
	}
	if cfg.CurveAddress == "" {
		return nil, fmt.Errorf("CURVE_ADDRESS must be set")
	}
	if cfg.OperatorKey == "" {
		return nil, fmt.Errorf("OPERATOR_PRIVATE_KEY must be set")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
