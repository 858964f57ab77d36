package scoring

import "github.com/planetforge/engine/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPerSampleCap sets the maximum delta a single sample can contribute per skill.
func WithPerSampleCap(cap float64) Option {
	return func(e *Engine) {
		if cap > 0 {
			e.perSampleCap = cap
		}
	}
}

// WithWebLanguages overrides the language family treated as web development.
func WithWebLanguages(langs []string) Option {
	return func(e *Engine) {
		if len(langs) == 0 {
			return
		}
		e.webLanguages = make(map[string]bool, len(langs))
		for _, l := range langs {
			e.webLanguages[l] = true
		}
	}
}

// WithAnalyzer attaches an optional AI analyzer for enrichment.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) {
		e.analyzer = a
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
