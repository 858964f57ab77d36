// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PersistQueueSize bounds the in-memory persistence job queue.
	PersistQueueSize int `koanf:"persist_queue_size"`

	// PersistWorkerCount sets the number of persistence workers.
	PersistWorkerCount int `koanf:"persist_worker_count"`

	// SessionIdleTimeoutS closes sessions with no activity for this many seconds.
	SessionIdleTimeoutS int `koanf:"session_idle_timeout_s"`

	// ReaperIntervalS sets how often the idle reaper sweeps open sessions.
	ReaperIntervalS int `koanf:"reaper_interval_s"`

	// AllowConcurrentSessions permits more than one open session per user.
	AllowConcurrentSessions bool `koanf:"allow_concurrent_sessions"`

	// PerSampleDeltaCap caps each skill delta produced for a single sample.
	PerSampleDeltaCap float64 `koanf:"per_sample_delta_cap"`

	// StageThresholds are the ascending mean-skill boundaries between
	// evolution stages. Must contain one fewer entry than there are stages.
	StageThresholds []float64 `koanf:"stage_thresholds"`

	// StageBonusPoints are awarded when a delta application advances the stage.
	StageBonusPoints int64 `koanf:"stage_bonus_points"`

	// SnapshotIntervalS sets how often the store rebuilds its listing snapshot.
	SnapshotIntervalS int `koanf:"snapshot_interval_s"`

	// MaxListLimit caps GET /api/v1/planets?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// AnalyzerURL is the base URL of the external AI analyzer. Empty disables it.
	AnalyzerURL string `koanf:"analyzer_url"`

	// AnalyzerAPIKey authenticates analyzer calls.
	AnalyzerAPIKey string `koanf:"analyzer_api_key"`

	// AnalyzerTimeoutMS bounds each analyzer call.
	AnalyzerTimeoutMS int `koanf:"analyzer_timeout_ms"`

	// StoreTimeoutMS bounds each store call issued by the persistence workers.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// IdentitySecret verifies bearer tokens (HS256). Empty rejects all tokens.
	IdentitySecret string `koanf:"identity_secret"`

	// WSReadLimit caps the size of a single WebSocket message in bytes.
	WSReadLimit int64 `koanf:"ws_read_limit"`

	// WSSendBuffer sets the per-connection outbound buffer size.
	WSSendBuffer int `koanf:"ws_send_buffer"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		PersistQueueSize:        50_000,
		PersistWorkerCount:      runtime.NumCPU() * 2,
		SessionIdleTimeoutS:     900,
		ReaperIntervalS:         30,
		AllowConcurrentSessions: false,
		PerSampleDeltaCap:       2.0,
		StageThresholds:         []float64{20, 40, 60, 80},
		StageBonusPoints:        50,
		SnapshotIntervalS:       5,
		MaxListLimit:            100,
		AnalyzerURL:             "",
		AnalyzerAPIKey:          "",
		AnalyzerTimeoutMS:       2000,
		StoreTimeoutMS:          1000,
		IdentitySecret:          "",
		WSReadLimit:             64 * 1024,
		WSSendBuffer:            64,
	}
}
