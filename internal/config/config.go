package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string

	// ConsumerGroup names the durable group the subscriber joins; replicas
	// sharing the name split the stream between them.
	ConsumerGroup string

	// CatalogPath optionally points at a YAML reward catalog. Empty means the
	// built-in catalog.
	CatalogPath string
}

const defaultConsumerGroup = "reward-service-group"

// New loads and validates configuration from environment variables.
// The HTTP API is optional: if PAYSTREAK_API_ENABLED != "true", ApiAddr()
// returns an error and the HTTP server simply won't start.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("PAYSTREAK_POSTGRES_USER"),
		DBPass:        os.Getenv("PAYSTREAK_POSTGRES_PASSWORD"),
		DBHost:        os.Getenv("PAYSTREAK_POSTGRES_HOST"),
		DBPort:        os.Getenv("PAYSTREAK_POSTGRES_PORT"),
		DBName:        os.Getenv("PAYSTREAK_POSTGRES_DB"),
		SSLMode:       os.Getenv("PAYSTREAK_POSTGRES_SSLMODE"),
		RedisHost:     os.Getenv("PAYSTREAK_REDIS_HOST"),
		RedisPort:     os.Getenv("PAYSTREAK_REDIS_PORT"),
		NatsHost:      os.Getenv("PAYSTREAK_NATS_HOST"),
		NatsPort:      os.Getenv("PAYSTREAK_NATS_PORT"),
		ApiPort:       os.Getenv("PAYSTREAK_API_PORT"),
		ApiEnabled:    os.Getenv("PAYSTREAK_API_ENABLED"),
		ConsumerGroup: os.Getenv("PAYSTREAK_CONSUMER_GROUP"),
		CatalogPath:   os.Getenv("PAYSTREAK_REWARD_CATALOG"),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: PAYSTREAK_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: PAYSTREAK_REDIS_HOST/PORT")
	}

	// Required: event log
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: PAYSTREAK_NATS_HOST/PORT")
	}

	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = defaultConsumerGroup
	}

	// Optional: HTTP API — ApiAddr() will return an error if not enabled.

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if PAYSTREAK_API_ENABLED != "true" — callers should skip
// starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("PAYSTREAK_API_PORT is required when PAYSTREAK_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (PAYSTREAK_API_ENABLED != true)")
}
