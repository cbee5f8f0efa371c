package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL     string `validate:"required"`
	RPCHTTPURL      string `validate:"required,url"`
	RPCWSURL        string `validate:"omitempty,url"`
	ProxyAddr       string
	ContractAddress string `validate:"required,eth_addr"`

	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	LogBatchSize  uint64

	JWTSecret         string `validate:"required"`
	AdminPasswordHash string
	MetricsUser       string
	MetricsPassword   string

	ListenAddr string `validate:"required"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found")
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RPCHTTPURL:        os.Getenv("RPC_HTTP_URL"),
		RPCWSURL:          os.Getenv("RPC_WS_URL"),
		ProxyAddr:         os.Getenv("PROXY_ADDR"),
		ContractAddress:   os.Getenv("CONTRACT_ADDRESS"),
		StartBlock:        envUint("START_BLOCK", 0),
		Confirmations:     envUint("CONFIRMATIONS", 5),
		PollInterval:      envDuration("POLL_INTERVAL", 15*time.Second),
		LogBatchSize:      envUint("LOG_BATCH_SIZE", 2000),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		MetricsUser:       os.Getenv("METRICS_USER"),
		MetricsPassword:   os.Getenv("METRICS_PASSWORD"),
		ListenAddr:        envString("LISTEN_ADDR", ":8080"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer env var, using default")
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration env var, using default")
		return fallback
	}
	return d
}
