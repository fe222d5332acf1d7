package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestDefaultConfig_Journal verifies the note store defaults
func TestDefaultConfig_Journal(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Journal.Workspace == "" {
		t.Error("Workspace should not be empty")
	}
	if cfg.Journal.Backend != BackendJSON {
		t.Errorf("Backend = %q, want %q", cfg.Journal.Backend, BackendJSON)
	}
	if cfg.Journal.DataFile != "notes.json" {
		t.Errorf("DataFile = %q, want notes.json", cfg.Journal.DataFile)
	}
}

// TestDefaultConfig_Gateway verifies gateway defaults
func TestDefaultConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != "127.0.0.1" {
		t.Error("Gateway host should have default value")
	}
	if cfg.Gateway.Port == 0 {
		t.Error("Gateway port should have default value")
	}
	if got := cfg.Addr(); got != "127.0.0.1:18790" {
		t.Errorf("Addr() = %q", got)
	}
}

// TestDefaultConfig_Channels verifies Discord config defaults
func TestDefaultConfig_Channels(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.Discord.Token != "" {
		t.Error("Discord token should be empty by default")
	}
	if cfg.Channels.Discord.Enabled {
		t.Error("Discord should be disabled by default")
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"sqlite backend", func(c *Config) { c.Journal.Backend = BackendSQLite }, ""},
		{"unknown backend", func(c *Config) { c.Journal.Backend = "postgres" }, "journal.backend"},
		{"bad port", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"no idle sessions", func(c *Config) { c.Assistant.IdleSessions = 0 }, "assistant.idle_sessions"},
		{"bad cron", func(c *Config) {
			c.Digest.Enabled = true
			c.Digest.ChannelID = "123"
			c.Digest.Cron = "every monday"
		}, "digest.cron"},
		{"disabled digest ignores cron", func(c *Config) { c.Digest.Cron = "nope" }, ""},
		{"digest without channel", func(c *Config) { c.Digest.Enabled = true }, "digest.channel_id"},
		{"discord without token", func(c *Config) { c.Channels.Discord.Enabled = true }, "channels.discord.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestPathsResolveAgainstWorkspace(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Journal.Workspace = ws

	if got, want := cfg.NotesPath(), filepath.Join(ws, "notes.json"); got != want {
		t.Errorf("NotesPath() = %q, want %q", got, want)
	}
	if got, want := cfg.HistoryPath(), filepath.Join(ws, "state", "history.db"); got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}

	abs := filepath.Join(t.TempDir(), "elsewhere.db")
	cfg.Journal.DBFile = abs
	if got := cfg.NotesDBPath(); got != abs {
		t.Errorf("NotesDBPath() = %q, want %q", got, abs)
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Journal.Backend = BackendSQLite
	cfg.Digest.Cron = "30 7 * * *"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Journal.Backend != BackendSQLite || loaded.Digest.Cron != "30 7 * * *" {
		t.Fatalf("round trip lost values: %+v", loaded.Journal)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("DAYBOOK_JOURNAL_BACKEND", "sqlite")
	t.Setenv("DAYBOOK_GATEWAY_PORT", "9000")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Journal.Backend; got != "sqlite" {
		t.Fatalf("expected env override backend, got %q", got)
	}
	if got := cfg.Gateway.Port; got != 9000 {
		t.Fatalf("expected env override port, got %d", got)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"channels":{"discord":{"enabled":true,"token":"file-token","allow_from":[987654321,"alice"]}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAYBOOK_CHANNELS_DISCORD_TOKEN", "env-token")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Channels.Discord.Token; got != "env-token" {
		t.Fatalf("expected env token, got %q", got)
	}
	allow := cfg.Channels.Discord.AllowFrom
	if len(allow) != 2 || allow[0] != "987654321" || allow[1] != "alice" {
		t.Fatalf("allow_from = %v", allow)
	}
	// Untouched sections keep their defaults.
	if cfg.Journal.Backend != BackendJSON {
		t.Fatalf("backend default lost: %q", cfg.Journal.Backend)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
