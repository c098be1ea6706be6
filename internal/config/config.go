package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Port    string
	BaseURL string

	// Upstream NauticalFlow API
	APIBaseURL string
	APIToken   string

	// Database
	DBDriver string // "sqlite" or "postgres"
	DBPath   string // SQLite file path
	DBURL    string // PostgreSQL connection string

	// Catalog refresh
	RefreshSchedule  string // cron expression
	RefreshOnStartup bool

	// Port congestion dataset
	CongestionCSV string

	// Secrets
	EncryptionKey string // base64 AES-256 key for stored credentials
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		APIBaseURL:       getEnv("NAUTICALFLOW_API_URL", "http://localhost:5000/api"),
		APIToken:         getEnv("NAUTICALFLOW_API_TOKEN", ""),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./data/vessel-manager.db"),
		DBURL:            getEnv("DATABASE_URL", ""),
		RefreshSchedule:  getEnv("REFRESH_SCHEDULE", "0 4 * * *"), // 4am daily
		RefreshOnStartup: getEnvBool("REFRESH_ON_STARTUP", true),
		CongestionCSV:    getEnv("CONGESTION_CSV", "./data/US_PortCalls.csv"),
		EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	val = strings.ToLower(val)
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
