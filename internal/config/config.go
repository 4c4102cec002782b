package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	AuthKey     string
	Host        string

	S3Bucket  string
	AWSRegion string

	// GroupReplayLookback bounds how far back group backlog is replayed for
	// a reconnecting user when no last-seen timestamp is tracked.
	GroupReplayLookback time.Duration
}

func Load() *Config {
	log.Println("[CONFIG] Attempting to load .env file...")

	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] No .env file found, relying on system environment variables")
	} else {
		log.Println("[CONFIG] Successfully loaded .env file")
	}

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("APP_ENV", "development"),
		AuthKey:             getEnv("AUTH_KEY", ""),
		Host:                getEnv("HOST", "localhost"),
		S3Bucket:            getEnv("S3_BUCKET_NAME", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		GroupReplayLookback: time.Duration(getEnvInt("GROUP_REPLAY_LOOKBACK_DAYS", 7)) * 24 * time.Hour,
	}

	log.Printf("[CONFIG] Environment: %s", cfg.Env)
	log.Printf("[CONFIG] Target Port: %s", cfg.Port)

	if cfg.DatabaseURL == "" {
		log.Fatal("[CONFIG] CRITICAL: DATABASE_URL is missing. Server cannot start.")
	} else {
		log.Printf("[CONFIG] Database URL detected: %s", maskDBSource(cfg.DatabaseURL))
	}

	if cfg.AuthKey == "" {
		log.Fatal("[CONFIG] CRITICAL: AUTH_KEY (JWT Secret) is missing. Security cannot be initialized.")
	}

	if cfg.S3Bucket == "" {
		log.Println("[CONFIG] WARNING: S3_BUCKET_NAME not set, media uploads will be rejected")
	}

	log.Println("[CONFIG] All configuration variables successfully initialized")
	return cfg
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Printf("[CONFIG] Variable %s not found, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[CONFIG] Variable %s is not a number, using default: %d", key, defaultValue)
		return defaultValue
	}
	return n
}

func maskDBSource(dsn string) string {
	parts := strings.Split(dsn, "@")
	if len(parts) < 2 {
		return "invalid-dsn-format"
	}
	return "postgres://****:****@" + parts[1]
}
