// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and WARDEN_ env vars.
// - External errors are wrapped via this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the SQLite signal store. Empty selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// ModelPath locates the serialized risk classifier artifact.
	ModelPath string `koanf:"model_path"`

	// EVModelPath locates the EV battery classifier artifact.
	EVModelPath string `koanf:"ev_model_path"`

	// BehaviourWindowDays bounds the recent-telemetry window for the
	// behaviour delta.
	BehaviourWindowDays int `koanf:"behaviour_window_days"`

	// BehaviourMaxEvents caps how many windowed events the behaviour delta
	// inspects.
	BehaviourMaxEvents int `koanf:"behaviour_max_events"`

	// QueueSize bounds the in-memory telemetry ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// TopRiskLimit caps GET /risk/top?limit.
	TopRiskLimit int `koanf:"top_risk_limit"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9090",
		DBPath:              "",
		ModelPath:           "data/predictive_model.json",
		EVModelPath:         "data/ev_battery_model.json",
		BehaviourWindowDays: 30,
		BehaviourMaxEvents:  50,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          100_000,
		TopRiskLimit:        100,
	}
}
