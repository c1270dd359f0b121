package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("Expected access ttl 15m, got %s", cfg.AccessTokenTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.Development() {
		t.Error("Expected production environment by default")
	}
}

func TestFromEnvRequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORE_DRIVER", DriverPostgres)
	t.Setenv("DATABASE_URL", "")
	if _, err := FromEnv(); err == nil {
		t.Error("Expected error when DATABASE_URL is missing")
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	if _, err := FromEnv(); err == nil {
		t.Error("Expected error for malformed duration")
	}
}
