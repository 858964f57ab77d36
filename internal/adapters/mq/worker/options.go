package worker

import (
	"errors"
	"time"

	"github.com/planetforge/engine/pkg/logger"
)

// Sentinel kinds for worker errors.
var (
	ErrUnknownJobKind = errors.New("unknown persistence job kind")
)

// Option applies a configuration option to a Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
			w.logger = logger.Get().Named(name)
		}
	}
}

// WithRetryCount sets how many times a failed job is retried before dropping.
func WithRetryCount(count int) Option {
	return func(w *Worker) {
		if count >= 0 {
			w.retryCount = count
		}
	}
}

// WithRetryBackoff sets the base backoff between retries (grows linearly).
func WithRetryBackoff(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.retryBackoff = d
		}
	}
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.storeTimeout = d
		}
	}
}
