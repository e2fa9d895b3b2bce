package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all agentflow server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath      string `json:"db_path"`
	LogLevel    string `json:"log_level"`
	Concurrency int    `json:"concurrency"`
	Scheduler   bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		DBPath:      filepath.Join(agentflowDir(), "agentflow.db"),
		LogLevel:    "info",
		Concurrency: 8,
		Scheduler:   true,
	}
}

func agentflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentflow"
	}
	return filepath.Join(home, ".agentflow")
}

func settingsPath() string {
	return filepath.Join(agentflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("AGENTFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AGENTFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AGENTFLOW_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("AGENTFLOW_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}

// logLevel maps the configured level string to a slog.Level.
func (c Config) logLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
