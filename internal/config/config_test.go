package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
	if cfg.RateLimit.MaxMessages != 10 || cfg.RateLimit.Window != 10*time.Second || cfg.RateLimit.BanDuration != 30*time.Second {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.Chat.DefaultRoom != "general" || cfg.Chat.HistoryLimit != 50 {
		t.Errorf("chat defaults = %+v", cfg.Chat)
	}
	if cfg.Chat.EncryptionKey != "" {
		t.Error("encryption enabled by default")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CHATRELAY_HTTP_PORT", "9090")
	t.Setenv("CHATRELAY_DEFAULT_ROOM", "lobby")
	t.Setenv("CHATRELAY_RATE_WINDOW", "20s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Chat.DefaultRoom != "lobby" {
		t.Errorf("default room = %q, want lobby", cfg.Chat.DefaultRoom)
	}
	if cfg.RateLimit.Window != 20*time.Second {
		t.Errorf("window = %v, want 20s", cfg.RateLimit.Window)
	}
	// Untouched fields keep their defaults.
	if cfg.Database.Path != "./chatrelay.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
}

func TestLoad_FileOverridesEnvironment(t *testing.T) {
	t.Setenv("CHATRELAY_HTTP_PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"http": {"port": 7070}, "chat": {"encryption_key": "secret"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Errorf("port = %d, want file value 7070", cfg.HTTP.Port)
	}
	if cfg.Chat.EncryptionKey != "secret" {
		t.Errorf("encryption key = %q", cfg.Chat.EncryptionKey)
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("Load() with an absent explicit path succeeded")
	}
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with malformed JSON succeeded")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"negative busy timeout", func(c *Config) { c.Database.BusyTimeout = -time.Second }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
		{"zero max messages", func(c *Config) { c.RateLimit.MaxMessages = 0 }},
		{"zero ban duration", func(c *Config) { c.RateLimit.BanDuration = 0 }},
		{"empty default room", func(c *Config) { c.Chat.DefaultRoom = "" }},
		{"zero history limit", func(c *Config) { c.Chat.HistoryLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted an invalid config")
			}
		})
	}
}
