package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all veritas configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	MaxParallel    int    `json:"max_parallel"`
	HistoryEnabled bool   `json:"history_enabled"`
	JobsPath       string `json:"jobs_path"` // cron jobs file for serve; empty disables scheduling
}

func defaultConfig() Config {
	return Config{
		DBPath:      filepath.Join(veritasDir(), "veritas.db"),
		LogLevel:    "info",
		MaxParallel: 5,
	}
}

func veritasDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veritas"
	}
	return filepath.Join(home, ".veritas")
}

func settingsPath() string {
	return filepath.Join(veritasDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("VERITAS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VERITAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VERITAS_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxParallel = n
		}
	}
	if v := os.Getenv("VERITAS_HISTORY"); v != "" {
		cfg.HistoryEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("VERITAS_JOBS"); v != "" {
		cfg.JobsPath = v
	}

	return cfg
}
