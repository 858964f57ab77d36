package session

import (
	"time"

	"github.com/planetforge/engine/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithIdleTimeout sets the inactivity duration after which a session is reaped.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithReaperInterval sets how often the idle reaper sweeps.
func WithReaperInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reaperInterval = d
		}
	}
}

// WithAllowConcurrent permits multiple open sessions per user.
func WithAllowConcurrent(allow bool) Option {
	return func(m *Manager) {
		m.allowConcurrent = allow
	}
}

// WithCloseHandler registers the async handoff invoked when a session closes.
func WithCloseHandler(h CloseHandler) Option {
	return func(m *Manager) {
		m.onClose = h
	}
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
