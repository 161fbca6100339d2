package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web     WebConfig     `yaml:"web"`
	Store   StoreConfig   `yaml:"store"`
	Audit   AuditConfig   `yaml:"audit"`
	NATS    NATSConfig    `yaml:"nats"`
	Silent  SilentConfig  `yaml:"silent"`
	Sweeper SweeperConfig `yaml:"sweeper"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Auth    AuthConfig    `yaml:"auth"`
}

type WebConfig struct {
	Port     int    `yaml:"port"`
	APIToken string `yaml:"api_token"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"` // "redis" or "memory"
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type SilentConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
	ExpiryBuffer    time.Duration `yaml:"expiry_buffer"`
}

type SweeperConfig struct {
	Schedule string `yaml:"schedule"` // cron expression
}

type AlertsConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type AuthConfig struct {
	Tokens []TokenEntry `yaml:"tokens"`
}

type TokenEntry struct {
	Token   string `yaml:"token"`
	ActorID string `yaml:"actor_id"`
	Role    string `yaml:"role"`
}

func defaults() Config {
	return Config{
		Web: WebConfig{
			Port: 8080,
		},
		Store: StoreConfig{
			Backend:   "redis",
			RedisURL:  "redis://localhost:6379/0",
			KeyPrefix: "sirena:",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "data/sirena.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Silent: SilentConfig{
			DefaultDuration: 30 * time.Minute,
			ExpiryBuffer:    time.Minute,
		},
		Sweeper: SweeperConfig{
			Schedule: "* * * * *",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SIRENA_CONFIG")
	if path == "" {
		path = "config/sirena.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIRENA_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SIRENA_API_TOKEN"); v != "" {
		cfg.Web.APIToken = v
	}
	if v := os.Getenv("SIRENA_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SIRENA_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("SIRENA_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("SIRENA_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SIRENA_TELEGRAM_TOKEN"); v != "" {
		cfg.Alerts.TelegramToken = v
	}
	if v := os.Getenv("SIRENA_ALERT_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Alerts.ChatID = id
		}
	}
}
