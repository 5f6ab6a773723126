// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs to talk to the identity
// provider, the local store, and the audit broker.
type Config struct {
	Addr        string
	Environment string

	// Identity provider admin API.
	IdPBaseURL      string
	IdPRealm        string
	IdPClientID     string
	IdPClientSecret string
	IdPTimeout      time.Duration
	// TokenURL overrides the derived token endpoint when set.
	TokenURL string

	// Local relational store.
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Audit event transport. Empty brokers disables publishing.
	KafkaBrokers string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("CONCORD_ADDR", ":8080"),
		Environment:     envOr("CONCORD_ENV", "development"),
		IdPBaseURL:      envOr("IDP_BASE_URL", "http://localhost:8081"),
		IdPRealm:        envOr("IDP_REALM", "master"),
		IdPClientID:     os.Getenv("IDP_CLIENT_ID"),
		IdPClientSecret: os.Getenv("IDP_CLIENT_SECRET"),
		IdPTimeout:      durationOr("IDP_TIMEOUT", 10*time.Second),
		TokenURL:        os.Getenv("IDP_TOKEN_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MaxOpenConns:    intOr("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    intOr("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: durationOr("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		AuditTopic:      envOr("AUDIT_TOPIC", "concord.audit"),
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", cfg.IdPBaseURL, cfg.IdPRealm)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
