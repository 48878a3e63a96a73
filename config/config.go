package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Definedge Integrate credentials
	APIToken   string
	APISecret  string
	TOTPSecret string // optional; enables automatic external-TOTP login

	// API base URL overrides (empty = production endpoints)
	AuthBase  string
	APIBase   string
	DataBase  string
	FilesBase string

	// Infrastructure
	RedisAddr   string // empty disables Redis snapshot mirroring
	MasterDB    string
	MetricsAddr string
	GatewayAddr string

	// Valuation pipeline
	Exchange     string
	Timeframe    string
	Workers      int
	TotalCapital float64

	// Refresh cadence
	RefreshOpen   time.Duration
	RefreshClosed time.Duration

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		APIToken:   mustEnv("INTEGRATE_API_TOKEN"),
		APISecret:  mustEnv("INTEGRATE_API_SECRET"),
		TOTPSecret: getEnv("INTEGRATE_TOTP_SECRET", ""),

		AuthBase:  getEnv("INTEGRATE_AUTH_BASE", ""),
		APIBase:   getEnv("INTEGRATE_API_BASE", ""),
		DataBase:  getEnv("INTEGRATE_DATA_BASE", ""),
		FilesBase: getEnv("INTEGRATE_FILES_BASE", ""),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		MasterDB:    getEnv("MASTER_DB", "data/master.db"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr: getEnv("GATEWAY_ADDR", ":8080"),

		Exchange:     getEnv("EXCHANGE", "NSE"),
		Timeframe:    getEnv("TIMEFRAME", "day"),
		Workers:      getEnvInt("WORKERS", 4),
		TotalCapital: getEnvFloat("TOTAL_CAPITAL", 0),

		RefreshOpen:   time.Duration(getEnvInt("REFRESH_OPEN_SECS", 30)) * time.Second,
		RefreshClosed: time.Duration(getEnvInt("REFRESH_CLOSED_SECS", 300)) * time.Second,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
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

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
