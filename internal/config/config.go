package config

import (
	"fmt"
	"os"
)

type Config struct {
	DatabaseURL    string
	RedisAddr      string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// Object storage for bundle payloads.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Shared secret for the internal broadcast endpoint.
	InternalToken string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", "bundlenudge-api"),
		S3Endpoint:     getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("S3_BUCKET", "bundles"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		InternalToken:  getEnv("INTERNAL_TOKEN", ""),
	}

	return cfg, nil
}

// Validate checks that the config carries everything the given binary needs.
func (c *Config) Validate(binary string) error {
	switch binary {
	case "api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", binary)
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for %s", binary)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
