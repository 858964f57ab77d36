// Package evolution accumulates skill deltas into planets and decides stage
// transitions and achievement unlocks.
//
// ApplyDeltas is the only writer of planet skill/stage fields. Writes are
// serialized per planet with keyed locks; cross-planet applications never
// block each other.
package evolution

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planetforge/engine/internal/domain/dedupe"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultStageBonus  = 50
	defaultLoadTimeout = time.Second
	maxSkillLevel      = 100.0
)

// defaultStageThresholds are the ascending mean-skill boundaries between stages.
var defaultStageThresholds = []float64{20, 40, 60, 80}

// Terrain and atmosphere vocabularies for lazily created planets.
var (
	terrains    = []string{"rocky", "volcanic", "oceanic", "crystalline", "forest", "desert", "arctic"}
	atmospheres = []string{"clear", "oxygen_rich", "neon", "methane", "stormy", "crystalline"}
)

// Loader answers point queries against the store collaborator. The boolean is
// false when no planet exists for the owner.
type Loader interface {
	Load(ctx context.Context, ownerID string) (*model.Planet, bool, error)
}

// Sink receives fire-and-forget persistence requests. Implementations must
// not block the caller.
type Sink interface {
	SavePlanet(ctx context.Context, p *model.Planet)
	AppendEvent(ctx context.Context, e model.EvolutionEvent)
}

// Engine owns the planet write path.
type Engine struct {
	mu      sync.Mutex
	planets map[string]*model.Planet // owner id -> authoritative state
	locks   map[string]*sync.Mutex   // owner id -> per-planet write lock

	thresholds  []float64
	stageBonus  int64
	loadTimeout time.Duration
	loader      Loader
	sink        Sink
	deduper     dedupe.Deduper
	now         func() time.Time

	logger logger.Logger
}

// New creates an evolution engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		planets:     make(map[string]*model.Planet),
		locks:       make(map[string]*sync.Mutex),
		thresholds:  defaultStageThresholds,
		stageBonus:  defaultStageBonus,
		loadTimeout: defaultLoadTimeout,
		deduper:     dedupe.NewInMemoryDeduper(),
		now:         time.Now,
		logger:      logger.Get().Named("evolution"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ApplyDeltas applies one sample's analysis to the owner's planet, lazily
// creating it. It returns the before/after snapshot, the points earned, and
// any achievements unlocked by this sample.
func (e *Engine) ApplyDeltas(ctx context.Context, ownerID string, analysis model.Analysis) (model.EvolutionResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	lock := e.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	planet := e.planet(ctx, ownerID)
	before := planet.State()
	now := e.now()

	// Monotonic-maximum application: levels never regress, clamped to [0,100].
	for _, k := range model.Skills() {
		delta := analysis.SkillDeltas[k]
		next := math.Max(planet.Skills[k], planet.Skills[k]+delta)
		planet.Skills[k] = math.Min(maxSkillLevel, next)
	}
	for trait, score := range analysis.Traits {
		next := math.Min(maxSkillLevel, math.Max(0, score))
		if next > planet.Traits[trait] {
			planet.Traits[trait] = next
		}
	}

	newStage := stageFor(planet.Skills.Mean(), e.thresholds)
	stageChanged := newStage.Index() > planet.Stage.Index()
	if stageChanged {
		planet.Stage = newStage
		metrics.RecordStageTransition(string(newStage))
	}

	earned := analysis.SkillDeltas.Sum()
	if stageChanged {
		earned += float64(e.stageBonus)
	}
	pointsEarned := int64(math.Round(earned))
	planet.EvolutionPoints += pointsEarned
	planet.UpdatedAt = now

	event := model.EvolutionEvent{
		ID:           uuid.NewString(),
		PlanetID:     planet.ID,
		Type:         eventType(stageChanged),
		Description:  describe(analysis.SkillDeltas, stageChanged, newStage),
		Deltas:       analysis.SkillDeltas.Clone(),
		PointsEarned: pointsEarned,
		StageChanged: stageChanged,
		Before:       before,
		After:        planet.State(),
		CreatedAt:    now,
	}

	achievements := e.unlockAchievements(ctx, planet.ID, analysis, earned)

	if e.sink != nil {
		e.sink.SavePlanet(ctx, planet.Clone())
		e.sink.AppendEvent(ctx, event)
	}
	metrics.RecordEvolutionEvent()

	return model.EvolutionResult{
		PlanetID:     planet.ID,
		Before:       before,
		After:        planet.State(),
		PointsEarned: pointsEarned,
		StageChanged: stageChanged,
		Achievements: achievements,
	}, nil
}

// AbsorbSession folds a closed session's summary into the planet's
// personality traits. Planets are not created for sessions that never
// produced evolution data.
func (e *Engine) AbsorbSession(ctx context.Context, summary model.SessionSummary, samples []model.SampleDigest) {
	if summary.SampleCount == 0 {
		return
	}

	lock := e.lockFor(summary.UserID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	planet, ok := e.planets[summary.UserID]
	e.mu.Unlock()
	if !ok {
		return
	}

	focus := math.Min(maxSkillLevel, summary.DurationSeconds/60)
	consistency := math.Min(maxSkillLevel, float64(summary.SampleCount))
	if focus > planet.Traits["focus"] {
		planet.Traits["focus"] = focus
	}
	if consistency > planet.Traits["consistency"] {
		planet.Traits["consistency"] = consistency
	}
	planet.UpdatedAt = e.now()

	if e.sink != nil {
		e.sink.SavePlanet(ctx, planet.Clone())
	}
}

// Planet returns a copy of the authoritative in-memory planet, if tracked.
// The per-planet lock is held while cloning so a concurrent ApplyDeltas
// cannot mutate the skill and trait maps mid-read.
func (e *Engine) Planet(ownerID string) (*model.Planet, bool) {
	lock := e.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	p, ok := e.planets[ownerID]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// planet returns the tracked planet for an owner, loading from the store or
// creating a fresh protoplanet. Caller holds the per-planet lock.
func (e *Engine) planet(ctx context.Context, ownerID string) *model.Planet {
	e.mu.Lock()
	if p, ok := e.planets[ownerID]; ok {
		e.mu.Unlock()
		return p
	}
	e.mu.Unlock()

	var planet *model.Planet
	if e.loader != nil {
		loadCtx, cancel := context.WithTimeout(ctx, e.loadTimeout)
		stored, found, err := e.loader.Load(loadCtx, ownerID)
		cancel()
		switch {
		case err != nil:
			// Degrade to a fresh in-memory planet; the store may catch up later.
			e.logger.Warn(ctx, "planet load failed, starting from scratch",
				logger.String("owner_id", ownerID), logger.Error(err))
		case found:
			planet = stored
		}
	}
	if planet == nil {
		planet = e.newPlanet(ownerID)
		e.logger.Info(ctx, "planet created",
			logger.String("planet_id", planet.ID),
			logger.String("owner_id", ownerID),
		)
	}

	e.mu.Lock()
	e.planets[ownerID] = planet
	e.mu.Unlock()
	return planet
}

// newPlanet creates a protoplanet with deterministic flavor for the owner.
func (e *Engine) newPlanet(ownerID string) *model.Planet {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ownerID))
	seed := h.Sum32()

	id := uuid.NewString()
	now := e.now()
	return &model.Planet{
		ID:         id,
		OwnerID:    ownerID,
		Name:       fmt.Sprintf("World-%s", id[:8]),
		Terrain:    terrains[int(seed)%len(terrains)],
		Atmosphere: atmospheres[int(seed/7)%len(atmospheres)],
		Skills:     model.ZeroSkills(),
		Stage:      model.StageProtoplanet,
		Traits:     make(map[string]float64),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (e *Engine) lockFor(ownerID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[ownerID] = lock
	}
	return lock
}

// stageFor maps a mean skill level to a stage via the monotonic step function.
func stageFor(mean float64, thresholds []float64) model.Stage {
	stages := model.Stages()
	for i, t := range thresholds {
		if mean < t {
			if i >= len(stages) {
				return stages[len(stages)-1]
			}
			return stages[i]
		}
	}
	idx := len(thresholds)
	if idx >= len(stages) {
		idx = len(stages) - 1
	}
	return stages[idx]
}

func eventType(stageChanged bool) string {
	if stageChanged {
		return "stage_evolution"
	}
	return "skill_evolution"
}

func describe(deltas model.SkillSet, stageChanged bool, stage model.Stage) string {
	if stageChanged {
		return fmt.Sprintf("Planet evolved to %s", stage)
	}
	best := model.Skills()[0]
	for _, k := range model.Skills() {
		if deltas[k] > deltas[best] {
			best = k
		}
	}
	return fmt.Sprintf("Skill growth led by %s", best)
}
