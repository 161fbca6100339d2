package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Web.Port != 8080 {
		t.Errorf("expected default web port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("expected default store backend 'redis', got %q", cfg.Store.Backend)
	}
	if cfg.Silent.DefaultDuration != 30*time.Minute {
		t.Errorf("expected default silent duration 30m, got %v", cfg.Silent.DefaultDuration)
	}
	if cfg.Silent.ExpiryBuffer != time.Minute {
		t.Errorf("expected default expiry buffer 1m, got %v", cfg.Silent.ExpiryBuffer)
	}
	if cfg.Sweeper.Schedule != "* * * * *" {
		t.Errorf("expected every-minute sweep schedule, got %q", cfg.Sweeper.Schedule)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sirena.yaml")

	content := `
web:
  port: 9090
  api_token: secret
store:
  backend: memory
silent:
  default_duration: 10m
auth:
  tokens:
    - token: tok-1
      actor_id: user-1
      role: registered_user
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIRENA_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Web.APIToken != "secret" {
		t.Errorf("expected api token 'secret', got %q", cfg.Web.APIToken)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected store backend 'memory', got %q", cfg.Store.Backend)
	}
	if cfg.Silent.DefaultDuration != 10*time.Minute {
		t.Errorf("expected silent duration 10m, got %v", cfg.Silent.DefaultDuration)
	}
	if len(cfg.Auth.Tokens) != 1 || cfg.Auth.Tokens[0].ActorID != "user-1" {
		t.Errorf("expected one auth token for user-1, got %+v", cfg.Auth.Tokens)
	}

	// Unset keys keep defaults
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected default nats port 4222, got %d", cfg.NATS.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIRENA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SIRENA_WEB_PORT", "7070")
	t.Setenv("SIRENA_STORE_BACKEND", "memory")
	t.Setenv("SIRENA_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("SIRENA_ALERT_CHAT_ID", "12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Web.Port != 7070 {
		t.Errorf("expected port 7070 from env, got %d", cfg.Web.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected backend 'memory' from env, got %q", cfg.Store.Backend)
	}
	if cfg.Store.RedisURL != "redis://cache:6379/2" {
		t.Errorf("expected redis url from env, got %q", cfg.Store.RedisURL)
	}
	if cfg.Alerts.ChatID != 12345 {
		t.Errorf("expected alert chat id 12345, got %d", cfg.Alerts.ChatID)
	}
}
