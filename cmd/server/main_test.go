package main

import (
	"bytes"
	"testing"

	"github.com/confabhq/confab/internal/config"
	"github.com/confabhq/confab/internal/logging"
)

func TestResolveRateLimit_Defaults(t *testing.T) {
	logger := logging.New().SetOutput(&bytes.Buffer{})
	cfg := &config.Config{Server: config.ServerConfig{Environment: "production"}}

	limit := resolveRateLimit("AUTH_RATE_LIMIT", 20, 200, cfg, logger, func(key string) (string, bool) {
		return "", false
	})
	if limit != 20 {
		t.Fatalf("expected default limit 20, got %d", limit)
	}
}

func TestResolveRateLimit_DevelopmentDefault(t *testing.T) {
	logger := logging.New().SetOutput(&bytes.Buffer{})
	cfg := &config.Config{Server: config.ServerConfig{Environment: "development"}}

	limit := resolveRateLimit("AUTH_RATE_LIMIT", 20, 200, cfg, logger, func(key string) (string, bool) {
		return "", false
	})
	if limit != 200 {
		t.Fatalf("expected dev limit 200, got %d", limit)
	}
}

func TestResolveRateLimit_FromEnv(t *testing.T) {
	logger := logging.New().SetOutput(&bytes.Buffer{})
	cfg := &config.Config{Server: config.ServerConfig{Environment: "production"}}

	limit := resolveRateLimit("AUTH_RATE_LIMIT", 20, 200, cfg, logger, func(key string) (string, bool) {
		return "25", true
	})
	if limit != 25 {
		t.Fatalf("expected env limit 25, got %d", limit)
	}
}

func TestResolveRateLimit_InvalidEnv(t *testing.T) {
	logger := logging.New().SetOutput(&bytes.Buffer{})
	cfg := &config.Config{Server: config.ServerConfig{Environment: "production"}}

	limit := resolveRateLimit("AUTH_RATE_LIMIT", 20, 200, cfg, logger, func(key string) (string, bool) {
		return "nope", true
	})
	if limit != 20 {
		t.Fatalf("expected fallback limit 20, got %d", limit)
	}
}
