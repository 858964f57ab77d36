// Package scoring maps behavioral metric samples to skill deltas and style labels.
//
// The heuristic path is pure and deterministic. An optional analyzer can
// enrich results; any analyzer failure silently falls back to the heuristic,
// so Score always produces an analysis.
package scoring

import (
	"context"
	"math"
	"time"

	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Style labels, in rule priority order. The first matching rule wins.
const (
	StyleMethodical = "methodical"
	StyleModular    = "modular"
	StyleComplex    = "complex"
	StylePragmatic  = "pragmatic"
)

// Analysis methods reported on the result.
const (
	MethodHeuristic = "heuristic"
	MethodAnalyzer  = "analyzer"
)

// Heuristic thresholds and base increments.
const (
	methodicalCommentRatio = 0.15
	modularFunctionDensity = 0.1
	complexComplexity      = 5.0

	complexityDeltaFactor = 0.1
	webLanguageDelta      = 1.5
	nonWebLanguageDelta   = 0.5
	functionsPresentDelta = 1.0
	functionsAbsentDelta  = 0.2
	classPresenceDelta    = 0.3
	devopsBaseDelta       = 0.3
	asyncBonusDelta       = 0.2
	securityHighDelta     = 0.2
	securityLowDelta      = 0.1

	defaultPerSampleCap = 2.0
)

// Analyzer is the external AI analysis capability. Implementations must honor
// ctx and bound their own timeouts; any error is treated as "unavailable".
type Analyzer interface {
	Analyze(ctx context.Context, sample model.MetricsSample) (model.Analysis, error)
}

// Engine computes analyses for individual samples.
type Engine struct {
	perSampleCap float64
	webLanguages map[string]bool
	analyzer     Analyzer
	logger       logger.Logger
}

// New creates a scoring engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		perSampleCap: defaultPerSampleCap,
		webLanguages: map[string]bool{
			"javascript": true,
			"typescript": true,
			"html":       true,
			"css":        true,
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Score produces an analysis for one sample. The analyzer result supersedes
// the heuristic when available; otherwise the deterministic heuristic applies.
// Score never returns an error: analysis is guaranteed to be produced.
func (e *Engine) Score(ctx context.Context, sample model.MetricsSample) model.Analysis {
	if e.analyzer != nil {
		start := time.Now()
		analysis, err := e.analyzer.Analyze(ctx, sample)
		metrics.RecordAnalyzerLatency(float64(time.Since(start).Milliseconds()))
		if err == nil {
			return e.sanitize(sample, analysis)
		}
		metrics.RecordAnalyzerFallback()
		if e.logger != nil {
			e.logger.Debug(ctx, "analyzer unavailable, using heuristic", logger.Error(err))
		}
	}
	return e.Heuristic(sample)
}

// Heuristic computes the deterministic fallback analysis for a sample.
func (e *Engine) Heuristic(sample model.MetricsSample) model.Analysis {
	commentRatio := sample.CommentRatio()
	functionDensity := sample.FunctionDensity()

	deltas := model.SkillSet{
		model.SkillAlgorithmMastery:  sample.Complexity * complexityDeltaFactor,
		model.SkillWebDevelopment:    nonWebLanguageDelta,
		model.SkillAPIDesign:         functionsAbsentDelta,
		model.SkillDevopsMaturity:    devopsBaseDelta,
		model.SkillSecurityAwareness: securityLowDelta,
	}
	if e.webLanguages[sample.Language] {
		deltas[model.SkillWebDevelopment] = webLanguageDelta
	}
	if sample.Functions > 0 {
		deltas[model.SkillAPIDesign] = functionsPresentDelta
	}
	if sample.Classes > 0 {
		deltas[model.SkillAlgorithmMastery] += classPresenceDelta
	}
	if sample.HasAsync {
		deltas[model.SkillDevopsMaturity] += asyncBonusDelta
	}
	if sample.HasErrorHandling || commentRatio > 0.1 {
		deltas[model.SkillSecurityAwareness] = securityHighDelta
	}
	for _, k := range model.Skills() {
		deltas[k] = clamp(deltas[k], 0, e.perSampleCap)
	}

	var style string
	switch {
	case commentRatio > methodicalCommentRatio:
		style = StyleMethodical
	case functionDensity > modularFunctionDensity:
		style = StyleModular
	case sample.Complexity > complexComplexity:
		style = StyleComplex
	default:
		style = StylePragmatic
	}

	return model.Analysis{
		SkillDeltas: deltas,
		CodingStyle: style,
		Patterns: model.Patterns{
			CommentRatio:         commentRatio,
			FunctionDensity:      functionDensity,
			ComplexityPreference: sample.Complexity,
		},
		EvolutionPoints: deltas.Sum(),
		Suggestions:     suggestions(sample, commentRatio),
		Method:          MethodHeuristic,
	}
}

// sanitize validates analyzer output before it enters the core: deltas are
// clamped to [0, cap], patterns are recomputed from the sample, and missing
// fields fall back to heuristic values.
func (e *Engine) sanitize(sample model.MetricsSample, analysis model.Analysis) model.Analysis {
	fallback := e.Heuristic(sample)

	clean := make(model.SkillSet, len(model.Skills()))
	for _, k := range model.Skills() {
		v := analysis.SkillDeltas[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = fallback.SkillDeltas[k]
		}
		clean[k] = clamp(v, 0, e.perSampleCap)
	}
	analysis.SkillDeltas = clean

	if analysis.CodingStyle == "" {
		analysis.CodingStyle = fallback.CodingStyle
	}
	analysis.Patterns = fallback.Patterns
	analysis.EvolutionPoints = clean.Sum()
	if len(analysis.Suggestions) == 0 {
		analysis.Suggestions = fallback.Suggestions
	}
	analysis.Method = MethodAnalyzer
	return analysis
}

func suggestions(sample model.MetricsSample, commentRatio float64) []string {
	var out []string
	if commentRatio < 0.05 && sample.Lines > 20 {
		out = append(out, "add comments to document intent")
	}
	if sample.Complexity > 8 {
		out = append(out, "consider splitting complex logic into smaller functions")
	}
	if !sample.HasErrorHandling && sample.Functions > 2 {
		out = append(out, "add error handling around fallible calls")
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
