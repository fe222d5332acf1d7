// Daybook - journaling insights and a rule-based assistant
// License: MIT
//
// Copyright (c) 2026 Daybook contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/config"
	"github.com/dotsetgreg/daybook/pkg/conversation"
	"github.com/dotsetgreg/daybook/pkg/logger"
	"github.com/dotsetgreg/daybook/pkg/memory"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "daybook"

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// formatBuildInfo returns build time and go version info
func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}

	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Sync()
}

// loadConfig reads and validates the config, then applies its log settings.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error in %s: %w", path, err)
	}
	logger.Configure(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return cfg, nil
}

// app bundles what every journal command needs.
type app struct {
	cfg     *config.Config
	store   notes.Store
	journal *notes.Journal
	history *memory.SQLiteStore
}

func openApp(cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	store, err := openNoteStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store, journal: notes.NewJournal(store)}
	if cfg.Assistant.PersistHistory {
		a.history, err = memory.NewSQLiteStore(cfg.HistoryPath())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	logger.DebugCF("cli", "Journal opened", map[string]any{
		"backend": cfg.Journal.Backend,
		"history": a.history != nil,
	})
	return a, nil
}

func openNoteStore(cfg *config.Config) (notes.Store, error) {
	switch cfg.Journal.Backend {
	case config.BackendSQLite:
		store, err := notes.NewSQLiteStore(cfg.NotesDBPath())
		if err != nil {
			return nil, fmt.Errorf("open note database: %w", err)
		}
		return store, nil
	default:
		return notes.NewFileStore(cfg.NotesPath()), nil
	}
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.WarnCF("cli", "Failed to close history", map[string]any{"error": err.Error()})
		}
	}
	if err := a.store.Close(); err != nil {
		logger.WarnCF("cli", "Failed to close note store", map[string]any{"error": err.Error()})
	}
}

// registry returns a conversation registry backed by the history database
// when persistence is enabled.
func (a *app) registry() *conversation.Registry {
	var r *conversation.Registry
	if a.history == nil {
		r = conversation.NewRegistry(nil)
	} else {
		r = conversation.NewRegistry(a.history)
	}
	r.SetIdleLimit(a.cfg.Assistant.IdleSessions)
	return r
}

func (a *app) gateway(mb *bus.MessageBus) *conversation.Gateway {
	return conversation.NewGateway(mb, a.journal, assistant.New(), a.registry())
}

func (a *app) snapshot(ctx context.Context) (notes.Snapshot, error) {
	snap, err := a.journal.Snapshot(ctx)
	if err != nil {
		return notes.Snapshot{}, fmt.Errorf("load notes: %w", err)
	}
	return snap, nil
}

func isExitWord(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "sair":
		return true
	}
	return false
}
