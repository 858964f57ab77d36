// Package app wires the domain engines, the store and the persistence
// pipeline behind a single service facade used by both the WebSocket layer
// and the REST handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/planetforge/engine/internal/adapters/analyzer"
	"github.com/planetforge/engine/internal/adapters/mq/queue"
	"github.com/planetforge/engine/internal/adapters/mq/worker"
	"github.com/planetforge/engine/internal/adapters/repository"
	"github.com/planetforge/engine/internal/config"
	"github.com/planetforge/engine/internal/domain/evolution"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/internal/domain/scoring"
	"github.com/planetforge/engine/internal/domain/session"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// gaugeInterval is how often background gauges are refreshed.
const gaugeInterval = 5 * time.Second

// drainTimeout bounds how long Stop waits for workers to flush the queue.
const drainTimeout = 5 * time.Second

// StreamResult bundles the live session snapshot with the planet evolution
// caused by the same sample.
type StreamResult struct {
	Update    model.LiveUpdate      `json:"update"`
	Evolution model.EvolutionResult `json:"evolution"`
}

// Service is the application facade.
type Service struct {
	cfg *config.Config

	store     *repository.MemStore
	jobs      queue.Queue
	pool      *worker.Pool
	scorer    *scoring.Engine
	sessions  *session.Manager
	evolution *evolution.Engine

	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New assembles a service from configuration. Nothing runs until Start.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.Get().Named("app"),
	}
}

// Start builds and launches all components. The provided context bounds the
// lifetime of every background goroutine.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now()

	s.store = repository.NewMemStore(ctx,
		repository.WithSnapshotInterval(time.Duration(s.cfg.SnapshotIntervalS)*time.Second),
	)

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.PersistQueueSize))
	metrics.UpdateQueueCapacity(s.cfg.PersistQueueSize)

	s.pool = worker.NewPool(s.cfg.PersistWorkerCount, s.jobs, s.store,
		worker.WithStoreTimeout(time.Duration(s.cfg.StoreTimeoutMS)*time.Millisecond),
	)
	s.pool.Start(ctx)

	scoringOpts := []scoring.Option{
		scoring.WithPerSampleCap(s.cfg.PerSampleDeltaCap),
	}
	if s.cfg.AnalyzerURL != "" {
		client := analyzer.NewClient(s.cfg.AnalyzerURL, s.cfg.AnalyzerAPIKey,
			time.Duration(s.cfg.AnalyzerTimeoutMS)*time.Millisecond)
		scoringOpts = append(scoringOpts, scoring.WithAnalyzer(client))
	}
	s.scorer = scoring.New(scoringOpts...)

	s.evolution = evolution.New(
		evolution.WithStageThresholds(s.cfg.StageThresholds),
		evolution.WithStageBonus(s.cfg.StageBonusPoints),
		evolution.WithLoader(&storeLoader{store: s.store}),
		evolution.WithSink(&queueSink{jobs: s.jobs, logger: s.logger}),
	)

	s.sessions = session.NewManager(
		session.WithIdleTimeout(time.Duration(s.cfg.SessionIdleTimeoutS)*time.Second),
		session.WithReaperInterval(time.Duration(s.cfg.ReaperIntervalS)*time.Second),
		session.WithAllowConcurrent(s.cfg.AllowConcurrentSessions),
		session.WithCloseHandler(s.onSessionClose),
	)

	go s.sessions.RunReaper(ctx)
	go s.refreshGauges(ctx)

	s.logger.Info(ctx, "service started",
		logger.Int("persist_workers", s.cfg.PersistWorkerCount),
		logger.Int("persist_queue_size", s.cfg.PersistQueueSize),
		logger.String("analyzer", analyzerMode(s.cfg.AnalyzerURL)),
	)
	return nil
}

// Stop shuts the service down: the queue is closed first so workers drain
// the remaining jobs while the root context is still live, then background
// goroutines are canceled and the store is closed.
func (s *Service) Stop() error {
	var errs []error
	if s.jobs != nil {
		if err := s.jobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing queue: %w", err))
		}
	}
	if s.pool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := s.pool.Drain(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("draining queue: %w", err))
		}
		cancel()
		s.pool.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StartSession opens a new session for the user.
func (s *Service) StartSession(ctx context.Context, userID string, meta model.SessionMeta) (model.Session, error) {
	return s.sessions.Start(ctx, userID, meta)
}

// ProcessStream scores one sample, records it on the session and applies the
// resulting deltas to the user's planet.
func (s *Service) ProcessStream(ctx context.Context, userID, sessionID string, sample model.MetricsSample) (StreamResult, error) {
	analysis := s.scorer.Score(ctx, sample)

	update, err := s.sessions.Process(ctx, userID, sessionID, sample, analysis)
	if err != nil {
		return StreamResult{}, err
	}

	result, err := s.evolution.ApplyDeltas(ctx, userID, analysis)
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Update: update, Evolution: result}, nil
}

// EndSession closes a session at the owning client's request.
func (s *Service) EndSession(ctx context.Context, userID, sessionID string) (model.SessionSummary, error) {
	return s.sessions.End(ctx, userID, sessionID)
}

// EndSessionsForUser closes every open session of a user. Used on disconnect.
func (s *Service) EndSessionsForUser(ctx context.Context, userID string) {
	s.sessions.EndForUser(ctx, userID)
}

// Analyze performs a one-shot start/process/end round trip for callers that
// have a single sample and no live connection.
func (s *Service) Analyze(ctx context.Context, userID string, meta model.SessionMeta, sample model.MetricsSample) (StreamResult, model.SessionSummary, error) {
	sess, err := s.sessions.Start(ctx, userID, meta)
	if err != nil {
		return StreamResult{}, model.SessionSummary{}, err
	}

	res, err := s.ProcessStream(ctx, userID, sess.ID, sample)
	if err != nil {
		// Roll the session back so the user is not stuck at the open limit.
		_, _ = s.sessions.End(ctx, userID, sess.ID)
		return StreamResult{}, model.SessionSummary{}, err
	}

	summary, err := s.sessions.End(ctx, userID, sess.ID)
	if err != nil {
		return StreamResult{}, model.SessionSummary{}, err
	}
	return res, summary, nil
}

// PlanetByOwner returns the authoritative planet for a user: live engine
// state when tracked, the store otherwise.
func (s *Service) PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error) {
	if p, ok := s.evolution.Planet(ownerID); ok {
		return p, nil
	}
	p, err := s.store.PlanetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading planet for %q: %w", ownerID, err)
	}
	return p, nil
}

// TopPlanets returns up to n planets by evolution points, best-effort.
func (s *Service) TopPlanets(ctx context.Context, n int) ([]*model.Planet, error) {
	return s.store.TopPlanets(ctx, n)
}

// Events returns the newest evolution events of a user's planet.
func (s *Service) Events(ctx context.Context, ownerID string, limit int) ([]model.EvolutionEvent, error) {
	p, err := s.PlanetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.Events(ctx, p.ID, limit)
}

// GetStats reports service counters for the stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()
	return map[string]interface{}{
		"open_sessions":   s.sessions.OpenCount(),
		"tracked_planets": s.store.PlanetCount(ctx),
		"queue_depth":     s.jobs.Len(ctx),
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
	}
}

// onSessionClose runs after every session termination: the summary is
// persisted and folded into the planet's session-level traits.
func (s *Service) onSessionClose(ctx context.Context, summary model.SessionSummary, samples []model.SampleDigest) {
	if !s.jobs.Enqueue(ctx, queue.Job{Kind: queue.JobSaveSession, Summary: &summary}) {
		s.logger.Warn(ctx, "session summary dropped, queue full",
			logger.String("session_id", summary.SessionID),
		)
	}
	s.evolution.AbsorbSession(ctx, summary, samples)
}

// refreshGauges keeps slow-moving gauges current.
func (s *Service) refreshGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth := s.jobs.Len(ctx)
			metrics.UpdateQueueSize(depth)
			metrics.UpdateQueueUtilization(float64(depth) / float64(s.cfg.PersistQueueSize))
			metrics.UpdateTrackedPlanets(s.store.PlanetCount(ctx))
		}
	}
}

func analyzerMode(url string) string {
	if url == "" {
		return "heuristic"
	}
	return "ai"
}

// storeLoader adapts the repository to the evolution engine's Loader.
type storeLoader struct {
	store repository.Store
}

func (l *storeLoader) Load(ctx context.Context, ownerID string) (*model.Planet, bool, error) {
	p, err := l.store.PlanetByOwner(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading planet for %q: %w", ownerID, err)
	}
	return p, true, nil
}

// queueSink adapts the persistence queue to the evolution engine's Sink.
// Writes are fire-and-forget; a full queue drops the job with a warning.
type queueSink struct {
	jobs   queue.Queue
	logger logger.Logger
}

func (s *queueSink) SavePlanet(ctx context.Context, p *model.Planet) {
	if !s.jobs.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: p}) {
		s.logger.Warn(ctx, "planet save dropped, queue full", logger.String("planet_id", p.ID))
	}
}

func (s *queueSink) AppendEvent(ctx context.Context, e model.EvolutionEvent) {
	if !s.jobs.Enqueue(ctx, queue.Job{Kind: queue.JobAppendEvent, Event: &e}) {
		s.logger.Warn(ctx, "evolution event dropped, queue full", logger.String("planet_id", e.PlanetID))
	}
}
