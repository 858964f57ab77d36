// Package model contains domain models passed between layers.
package model

import "time"

// Skill identifies one of the fixed skill dimensions a planet evolves along.
type Skill string

// The canonical skill set. Deltas and levels are keyed by these values only.
const (
	SkillAlgorithmMastery  Skill = "algorithm_mastery"
	SkillWebDevelopment    Skill = "web_development_skill"
	SkillAPIDesign         Skill = "api_design_discipline"
	SkillDevopsMaturity    Skill = "devops_maturity"
	SkillSecurityAwareness Skill = "security_awareness"
)

// Skills returns the canonical skill order.
func Skills() []Skill {
	return []Skill{
		SkillAlgorithmMastery,
		SkillWebDevelopment,
		SkillAPIDesign,
		SkillDevopsMaturity,
		SkillSecurityAwareness,
	}
}

// SkillSet maps skills to levels (0-100) or per-sample deltas (non-negative).
type SkillSet map[Skill]float64

// Sum returns the total over the canonical skills.
func (s SkillSet) Sum() float64 {
	var total float64
	for _, k := range Skills() {
		total += s[k]
	}
	return total
}

// Mean returns the average level over the canonical skills.
func (s SkillSet) Mean() float64 {
	return s.Sum() / float64(len(Skills()))
}

// Clone returns an independent copy.
func (s SkillSet) Clone() SkillSet {
	out := make(SkillSet, len(Skills()))
	for _, k := range Skills() {
		out[k] = s[k]
	}
	return out
}

// ZeroSkills returns a SkillSet with every canonical skill at zero.
func ZeroSkills() SkillSet {
	out := make(SkillSet, len(Skills()))
	for _, k := range Skills() {
		out[k] = 0
	}
	return out
}

// Stage is the ordered evolution stage of a planet.
type Stage string

// Evolution stages, ascending.
const (
	StageProtoplanet  Stage = "protoplanet"
	StageYoungWorld   Stage = "young_world"
	StageMaturePlanet Stage = "mature_planet"
	StageAncientWorld Stage = "ancient_world"
	StageTranscended  Stage = "transcended"
)

// Stages returns all stages in ascending order.
func Stages() []Stage {
	return []Stage{
		StageProtoplanet,
		StageYoungWorld,
		StageMaturePlanet,
		StageAncientWorld,
		StageTranscended,
	}
}

// Index returns the position of the stage in the ascending order, or -1.
func (s Stage) Index() int {
	for i, st := range Stages() {
		if st == s {
			return i
		}
	}
	return -1
}

// SessionStatus is the lifecycle state of a coding session.
type SessionStatus string

// A session is either open or closed; closing is terminal.
const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// MetricsSample is a sanitized behavioral sample derived by the caller from
// raw editing activity. It never carries source text.
type MetricsSample struct {
	Lines            int     `json:"lines"`
	Functions        int     `json:"functions"`
	Classes          int     `json:"classes"`
	Comments         int     `json:"comments"`
	Complexity       float64 `json:"complexity"`
	Language         string  `json:"language"`
	EditLatencyMS    float64 `json:"edit_latency_ms"`
	CharsChanged     int     `json:"chars_changed"`
	Keystrokes       int     `json:"keystrokes"`
	HasErrorHandling bool    `json:"has_error_handling"`
	HasAsync         bool    `json:"has_async"`
}

// CommentRatio returns comments per line, guarding against empty samples.
func (m MetricsSample) CommentRatio() float64 {
	return float64(m.Comments) / float64(max(m.Lines, 1))
}

// FunctionDensity returns functions per line, guarding against empty samples.
func (m MetricsSample) FunctionDensity() float64 {
	return float64(m.Functions) / float64(max(m.Lines, 1))
}

// SampleDigest is the stored trace of one sample: derived metrics only.
type SampleDigest struct {
	TS              time.Time `json:"ts"`
	CommentRatio    float64   `json:"comment_ratio"`
	FunctionDensity float64   `json:"function_density"`
	Complexity      float64   `json:"complexity"`
}

// Session is one bounded interval of streamed behavioral telemetry.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Language     string         `json:"language"`
	ProjectName  string         `json:"project_name"`
	Status       SessionStatus  `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	LastActivity time.Time      `json:"last_activity"`
	EditCount    int            `json:"edit_count"`
	CharsSeen    int64          `json:"chars_seen"`
	Keystrokes   int64          `json:"keystrokes"`
	Samples      []SampleDigest `json:"samples"`
}

// SessionMeta carries client-supplied attributes for start_session.
type SessionMeta struct {
	Language    string `json:"language"`
	ProjectName string `json:"project_name"`
}

// SessionSummary captures the statistics computed when a session closes.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Language        string    `json:"language"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	SampleCount     int       `json:"sample_count"`
	EditCount       int       `json:"edit_count"`
	EditsPerMinute  float64   `json:"edits_per_minute"`
	TypingSpeedCPM  float64   `json:"typing_speed_cpm"`
}

// Patterns are the derived behavioral indicators attached to an analysis.
type Patterns struct {
	CommentRatio         float64 `json:"comment_ratio"`
	FunctionDensity      float64 `json:"function_density"`
	ComplexityPreference float64 `json:"complexity_preference"`
}

// Analysis is the scorer output for a single sample.
type Analysis struct {
	SkillDeltas     SkillSet           `json:"skill_deltas"`
	CodingStyle     string             `json:"coding_style"`
	Patterns        Patterns           `json:"behavioral_patterns"`
	EvolutionPoints float64            `json:"evolution_points"`
	Suggestions     []string           `json:"suggestions"`
	Traits          map[string]float64 `json:"traits,omitempty"`
	Method          string             `json:"analysis_method"`
}

// LiveUpdate is the immediate snapshot returned by process_stream.
type LiveUpdate struct {
	SessionID   string   `json:"session_id"`
	EditCount   int      `json:"edit_count"`
	CharsSeen   int64    `json:"chars_seen"`
	Keystrokes  int64    `json:"keystrokes"`
	SampleCount int      `json:"sample_count"`
	Analysis    Analysis `json:"analysis"`
}

// Planet is the durable, monotonically-progressing evolution target of one user.
type Planet struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	Name            string             `json:"name"`
	Terrain         string             `json:"terrain"`
	Atmosphere      string             `json:"atmosphere"`
	Skills          SkillSet           `json:"skills"`
	Stage           Stage              `json:"evolution_stage"`
	EvolutionPoints int64              `json:"evolution_points"`
	Traits          map[string]float64 `json:"traits"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (p *Planet) Clone() *Planet {
	out := *p
	out.Skills = p.Skills.Clone()
	out.Traits = make(map[string]float64, len(p.Traits))
	for k, v := range p.Traits {
		out.Traits[k] = v
	}
	return &out
}

// State captures the fields tracked in evolution event snapshots.
func (p *Planet) State() PlanetState {
	return PlanetState{
		Skills:          p.Skills.Clone(),
		Stage:           p.Stage,
		EvolutionPoints: p.EvolutionPoints,
	}
}

// PlanetState is a before/after snapshot embedded in evolution events.
type PlanetState struct {
	Skills          SkillSet `json:"skills"`
	Stage           Stage    `json:"evolution_stage"`
	EvolutionPoints int64    `json:"evolution_points"`
}

// EvolutionEvent is an immutable audit record of one delta application.
type EvolutionEvent struct {
	ID           string      `json:"id"`
	PlanetID     string      `json:"planet_id"`
	Type         string      `json:"event_type"`
	Description  string      `json:"description"`
	Deltas       SkillSet    `json:"deltas"`
	PointsEarned int64       `json:"points_earned"`
	StageChanged bool        `json:"stage_changed"`
	Before       PlanetState `json:"before_state"`
	After        PlanetState `json:"after_state"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Achievement is a badge unlocked by a qualifying sample.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
}

// EvolutionResult is returned by apply_deltas.
type EvolutionResult struct {
	PlanetID     string        `json:"planet_id"`
	Before       PlanetState   `json:"before_state"`
	After        PlanetState   `json:"after_state"`
	PointsEarned int64         `json:"points_earned"`
	StageChanged bool          `json:"stage_changed"`
	Achievements []Achievement `json:"achievements,omitempty"`
}
