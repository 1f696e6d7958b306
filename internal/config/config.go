package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the system-wide settings coordinator. Precedence is
// file > environment > defaults.
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Database  DatabaseConfig  `json:"database"`
	WebSocket WebSocketConfig `json:"websocket"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Chat      ChatConfig      `json:"chat"`
}

type HTTPConfig struct {
	Host         string        `json:"host" env:"CHATRELAY_HTTP_HOST"`
	Port         int           `json:"port" env:"CHATRELAY_HTTP_PORT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"CHATRELAY_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"CHATRELAY_HTTP_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Path        string        `json:"path" env:"CHATRELAY_DATABASE_PATH"`
	BusyTimeout time.Duration `json:"busy_timeout" env:"CHATRELAY_DATABASE_BUSY_TIMEOUT"`
	MaxConns    int           `json:"max_conns" env:"CHATRELAY_DATABASE_MAX_CONNS"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval" env:"CHATRELAY_WS_PING_INTERVAL"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"CHATRELAY_WS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"CHATRELAY_WS_WRITE_TIMEOUT"`
	SendBuffer   int           `json:"send_buffer" env:"CHATRELAY_WS_SEND_BUFFER"`
}

// RateLimitConfig tunes the per-user sliding window.
type RateLimitConfig struct {
	MaxMessages int           `json:"max_messages" env:"CHATRELAY_RATE_MAX_MESSAGES"`
	Window      time.Duration `json:"window" env:"CHATRELAY_RATE_WINDOW"`
	BanDuration time.Duration `json:"ban_duration" env:"CHATRELAY_RATE_BAN_DURATION"`
}

// ChatConfig tunes coordinator behavior. EncryptionKey being empty
// disables the payload cipher.
type ChatConfig struct {
	DefaultRoom   string `json:"default_room" env:"CHATRELAY_DEFAULT_ROOM"`
	HistoryLimit  int    `json:"history_limit" env:"CHATRELAY_HISTORY_LIMIT"`
	EncryptionKey string `json:"encryption_key" env:"CHATRELAY_ENCRYPTION_KEY"`
}

// Default returns production-ready defaults: local SQLite file, HTTP on
// 8080, 30s heartbeat, and the 10-messages-per-10s limit with a 30s ban.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./chatrelay.db",
			BusyTimeout: 5 * time.Second,
			MaxConns:    10,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   100,
		},
		RateLimit: RateLimitConfig{
			MaxMessages: 10,
			Window:      10 * time.Second,
			BanDuration: 30 * time.Second,
		},
		Chat: ChatConfig{
			DefaultRoom:  "general",
			HistoryLimit: 50,
		},
	}
}

// Load builds the effective configuration: defaults, then environment
// overrides, then the optional JSON file at path. A missing path is not
// an error; a present but unreadable or invalid file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("database busy timeout must be positive")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	if c.RateLimit.MaxMessages <= 0 {
		return fmt.Errorf("rate limit max messages must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.BanDuration <= 0 {
		return fmt.Errorf("rate limit durations must be positive")
	}
	if c.Chat.DefaultRoom == "" {
		return fmt.Errorf("default room cannot be empty")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	return nil
}
