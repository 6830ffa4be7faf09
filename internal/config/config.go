package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration

	// IssuerAPIKey authenticates the host application when it mints tokens.
	IssuerAPIKey string

	StoreDriver string

	KafkaBrokers []string
	KafkaTopic   string

	// ClearRole is "teacher" or "any".
	ClearRole        string
	DefaultSessionID string
	CORSAllowOrigins []string

	LogLevel string
	Env      string
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("server_port", "8080")
	v.SetDefault("jwt_expiry", "24h")
	v.SetDefault("store_driver", StoreDriverPostgres)
	v.SetDefault("kafka_topic", "whiteboard-audit")
	v.SetDefault("whiteboard_clear_role", "teacher")
	v.SetDefault("whiteboard_default_session", "main")
	v.SetDefault("cors_allow_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("env", "production")
	v.AutomaticEnv()

	expiry, err := time.ParseDuration(v.GetString("jwt_expiry"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cfg := &Config{
		ServerPort:       v.GetString("server_port"),
		DatabaseURL:      v.GetString("database_url"),
		RedisURL:         v.GetString("redis_url"),
		JWTSecret:        v.GetString("jwt_secret"),
		JWTExpiry:        expiry,
		IssuerAPIKey:     v.GetString("issuer_api_key"),
		StoreDriver:      strings.ToLower(v.GetString("store_driver")),
		KafkaBrokers:     splitList(v.GetString("kafka_brokers")),
		KafkaTopic:       v.GetString("kafka_topic"),
		ClearRole:        strings.ToLower(v.GetString("whiteboard_clear_role")),
		DefaultSessionID: v.GetString("whiteboard_default_session"),
		CORSAllowOrigins: splitList(v.GetString("cors_allow_origins")),
		LogLevel:         v.GetString("log_level"),
		Env:              v.GetString("env"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IssuerAPIKey == "" {
		return errors.New("ISSUER_API_KEY is required")
	}
	if c.ClearRole != "teacher" && c.ClearRole != "any" {
		return fmt.Errorf("WHITEBOARD_CLEAR_ROLE must be teacher or any, got %q", c.ClearRole)
	}
	if err := whiteboard.ValidateSessionID(c.DefaultSessionID); err != nil {
		return fmt.Errorf("WHITEBOARD_DEFAULT_SESSION: %w", err)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
