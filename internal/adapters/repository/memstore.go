package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount       = 8
	defaultSnapshotInterval = 5 * time.Second
	defaultEventCap         = 1000 // per-planet event history kept in memory
)

// shard holds a slice of the keyspace behind its own lock so cross-planet
// operations never contend.
type shard struct {
	mu       sync.RWMutex
	planets  map[string]*model.Planet          // planet id -> planet
	byOwner  map[string]string                 // owner id -> planet id
	events   map[string][]model.EvolutionEvent // planet id -> append-only log
	sessions map[string]model.SessionSummary   // session id -> summary
}

// MemStore is a sharded in-memory Store with a periodically rebuilt sorted
// snapshot serving listing queries.
type MemStore struct {
	shards     []*shard
	shardCount int

	snapshotInterval time.Duration
	snapshotMu       sync.RWMutex
	snapshot         []*model.Planet // ordered by evolution points desc

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMemStore creates a sharded in-memory store and starts its snapshot loop.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		shardCount:       defaultShardCount,
		snapshotInterval: defaultSnapshotInterval,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{
			planets:  make(map[string]*model.Planet),
			byOwner:  make(map[string]string),
			events:   make(map[string][]model.EvolutionEvent),
			sessions: make(map[string]model.SessionSummary),
		}
	}

	go s.snapshotLoop(ctx)
	return s
}

// Close stops the snapshot loop.
func (s *MemStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}

func (s *MemStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// SavePlanet upserts a planet snapshot.
func (s *MemStore) SavePlanet(ctx context.Context, p *model.Planet) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}
	sh := s.shardFor(p.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.planets[p.ID] = p.Clone()
	sh.byOwner[p.OwnerID] = p.ID
	return nil
}

// Planet returns a planet by id.
func (s *MemStore) Planet(ctx context.Context, id string) (*model.Planet, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	p, ok := sh.planets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// PlanetByOwner returns the planet owned by a user.
func (s *MemStore) PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}
	// Owner ids hash independently of planet ids, so scan shards for the
	// owner index. Shard count is small and fixed.
	for _, sh := range s.shards {
		sh.mu.RLock()
		id, ok := sh.byOwner[ownerID]
		var p *model.Planet
		if ok {
			p = sh.planets[id]
		}
		sh.mu.RUnlock()
		if p != nil {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// TopPlanets returns up to n planets ordered by evolution points desc,
// served from the latest snapshot.
func (s *MemStore) TopPlanets(ctx context.Context, n int) ([]*model.Planet, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()
	if n > len(s.snapshot) {
		n = len(s.snapshot)
	}
	out := make([]*model.Planet, 0, n)
	for _, p := range s.snapshot[:n] {
		out = append(out, p.Clone())
	}
	return out, nil
}

// AppendEvent appends an immutable evolution event, capping per-planet history.
func (s *MemStore) AppendEvent(ctx context.Context, e model.EvolutionEvent) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}
	sh := s.shardFor(e.PlanetID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	log := append(sh.events[e.PlanetID], e)
	if len(log) > defaultEventCap {
		log = log[len(log)-defaultEventCap:]
	}
	sh.events[e.PlanetID] = log
	return nil
}

// Events returns up to limit events for a planet, newest first.
func (s *MemStore) Events(ctx context.Context, planetID string, limit int) ([]model.EvolutionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	sh := s.shardFor(planetID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	log := sh.events[planetID]
	if limit > len(log) {
		limit = len(log)
	}
	out := make([]model.EvolutionEvent, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// SaveSession stores a closed-session summary record.
func (s *MemStore) SaveSession(ctx context.Context, summary model.SessionSummary) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}
	sh := s.shardFor(summary.SessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[summary.SessionID] = summary
	return nil
}

// PlanetCount returns the number of planets tracked.
func (s *MemStore) PlanetCount(_ context.Context) int {
	count := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		count += len(sh.planets)
		sh.mu.RUnlock()
	}
	return count
}

// snapshotLoop periodically rebuilds the sorted listing snapshot.
func (s *MemStore) snapshotLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.rebuildSnapshot()
		}
	}
}

func (s *MemStore) rebuildSnapshot() {
	start := time.Now()

	var all []*model.Planet
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, p := range sh.planets {
			all = append(all, p.Clone())
		}
		sh.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].EvolutionPoints != all[j].EvolutionPoints {
			return all[i].EvolutionPoints > all[j].EvolutionPoints
		}
		return all[i].ID < all[j].ID
	})

	s.snapshotMu.Lock()
	s.snapshot = all
	s.snapshotMu.Unlock()

	metrics.RecordSnapshotRebuild(float64(time.Since(start).Milliseconds()))
	metrics.UpdateSnapshotLastUnix(float64(time.Now().Unix()))
	metrics.UpdateTrackedPlanets(len(all))
}

// RebuildSnapshotNow forces an immediate snapshot rebuild. Intended for tests
// and administrative endpoints that need fresh listings.
func (s *MemStore) RebuildSnapshotNow() {
	s.rebuildSnapshot()
}
