package evolution

import (
	"sort"
	"time"

	"github.com/planetforge/engine/internal/domain/dedupe"
	"github.com/planetforge/engine/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithStageThresholds sets the ascending mean-skill stage boundaries.
func WithStageThresholds(thresholds []float64) Option {
	return func(e *Engine) {
		if len(thresholds) > 0 && sort.Float64sAreSorted(thresholds) {
			e.thresholds = thresholds
		}
	}
}

// WithStageBonus sets the points awarded on a stage advance.
func WithStageBonus(points int64) Option {
	return func(e *Engine) {
		if points >= 0 {
			e.stageBonus = points
		}
	}
}

// WithLoader attaches the store collaborator used for lazy planet loads.
func WithLoader(l Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithSink attaches the fire-and-forget persistence sink.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithDeduper overrides the achievement idempotency tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(e *Engine) {
		if d != nil {
			e.deduper = d
		}
	}
}

// WithLoadTimeout bounds lazy planet loads from the store.
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.loadTimeout = d
		}
	}
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
