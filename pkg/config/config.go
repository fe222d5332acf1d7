package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Discord IDs pasted as numbers.
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Journal   JournalConfig   `json:"journal"`
	Assistant AssistantConfig `json:"assistant"`
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	Digest    DigestConfig    `json:"digest"`
	Log       LogConfig       `json:"log"`
	mu        sync.RWMutex
}

type JournalConfig struct {
	Workspace string `json:"workspace" env:"DAYBOOK_JOURNAL_WORKSPACE"`
	Backend   string `json:"backend" env:"DAYBOOK_JOURNAL_BACKEND"`
	DataFile  string `json:"data_file" env:"DAYBOOK_JOURNAL_DATA_FILE"`
	DBFile    string `json:"db_file" env:"DAYBOOK_JOURNAL_DB_FILE"`
}

type AssistantConfig struct {
	PersistHistory bool   `json:"persist_history" env:"DAYBOOK_ASSISTANT_PERSIST_HISTORY"`
	HistoryFile    string `json:"history_file" env:"DAYBOOK_ASSISTANT_HISTORY_FILE"`
	IdleSessions   int    `json:"idle_sessions" env:"DAYBOOK_ASSISTANT_IDLE_SESSIONS"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"DAYBOOK_GATEWAY_HOST"`
	Port int    `json:"port" env:"DAYBOOK_GATEWAY_PORT"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" env:"DAYBOOK_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" env:"DAYBOOK_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DAYBOOK_CHANNELS_DISCORD_ALLOW_FROM"`
}

// DigestConfig schedules the strategic report post. Cron uses the standard
// five-field syntax.
type DigestConfig struct {
	Enabled   bool   `json:"enabled" env:"DAYBOOK_DIGEST_ENABLED"`
	Cron      string `json:"cron" env:"DAYBOOK_DIGEST_CRON"`
	Channel   string `json:"channel" env:"DAYBOOK_DIGEST_CHANNEL"`
	ChannelID string `json:"channel_id" env:"DAYBOOK_DIGEST_CHANNEL_ID"`
}

type LogConfig struct {
	Level  string `json:"level" env:"DAYBOOK_LOG_LEVEL"`
	Format string `json:"format" env:"DAYBOOK_LOG_FORMAT"`
}

func DefaultConfig() *Config {
	return &Config{
		Journal: JournalConfig{
			Workspace: "~/.daybook/workspace",
			Backend:   BackendJSON,
			DataFile:  "notes.json",
			DBFile:    "notes.db",
		},
		Assistant: AssistantConfig{
			PersistHistory: true,
			HistoryFile:    "state/history.db",
			IdleSessions:   256,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Digest: DigestConfig{
			Enabled: false,
			Cron:    "0 8 * * 1", // Mondays at 08:00
			Channel: "discord",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultPath is where the CLI looks for the config file.
func DefaultPath() string {
	return expandHome("~/.daybook/config.json")
}

// LoadConfig reads path over the defaults and then applies DAYBOOK_*
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Journal.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("journal.backend: unsupported value %q (want %q or %q)", c.Journal.Backend, BackendJSON, BackendSQLite)
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port: %d out of range", c.Gateway.Port)
	}
	if c.Assistant.IdleSessions < 1 {
		return fmt.Errorf("assistant.idle_sessions: must be at least 1, got %d", c.Assistant.IdleSessions)
	}
	if c.Digest.Enabled {
		if !gronx.New().IsValid(c.Digest.Cron) {
			return fmt.Errorf("digest.cron: invalid expression %q", c.Digest.Cron)
		}
		if c.Digest.ChannelID == "" {
			return fmt.Errorf("digest.channel_id: required when digest is enabled")
		}
	}
	if c.Channels.Discord.Enabled && c.Channels.Discord.Token == "" {
		return fmt.Errorf("channels.discord.token: required when discord is enabled")
	}
	return nil
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Journal.Workspace)
}

// NotesPath is the JSON note file, resolved against the workspace.
func (c *Config) NotesPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inWorkspace(c.Journal.DataFile)
}

// NotesDBPath is the SQLite note database, resolved against the workspace.
func (c *Config) NotesDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inWorkspace(c.Journal.DBFile)
}

func (c *Config) HistoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inWorkspace(c.Assistant.HistoryFile)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

func (c *Config) inWorkspace(p string) string {
	p = expandHome(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(expandHome(c.Journal.Workspace), p)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
