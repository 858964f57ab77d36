package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/planetforge/engine/internal/adapters/mq/queue"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeStore counts writes and can be told to fail a number of times.
type fakeStore struct {
	mu        sync.Mutex
	failures  int
	planets   []*model.Planet
	events    []model.EvolutionEvent
	summaries []model.SessionSummary
}

func (s *fakeStore) SavePlanet(_ context.Context, p *model.Planet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.planets = append(s.planets, p)
	return nil
}

func (s *fakeStore) Planet(_ context.Context, _ string) (*model.Planet, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) PlanetByOwner(_ context.Context, _ string) (*model.Planet, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) TopPlanets(_ context.Context, _ int) ([]*model.Planet, error) {
	return nil, nil
}

func (s *fakeStore) AppendEvent(_ context.Context, e model.EvolutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *fakeStore) Events(_ context.Context, _ string, _ int) ([]model.EvolutionEvent, error) {
	return nil, nil
}

func (s *fakeStore) SaveSession(_ context.Context, summary model.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *fakeStore) PlanetCount(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.planets)
}

func (s *fakeStore) planetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.planets)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorker_ProcessesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(8))
	store := &fakeStore{}
	w := New(q, store)

	go w.Run(ctx)

	q.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: &model.Planet{ID: "p-1"}})
	q.Enqueue(ctx, queue.Job{Kind: queue.JobSaveSession, Summary: &model.SessionSummary{SessionID: "s-1"}})
	q.Enqueue(ctx, queue.Job{Kind: queue.JobAppendEvent, Event: &model.EvolutionEvent{ID: "e-1"}})

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.planets) == 1 && len(store.summaries) == 1 && len(store.events) == 1
	})

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestWorker_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(4))
	store := &fakeStore{failures: 2}
	w := New(q, store,
		WithRetryCount(3),
		WithRetryBackoff(time.Millisecond),
	)

	go w.Run(ctx)

	q.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: &model.Planet{ID: "p-1"}})

	waitFor(t, func() bool { return store.planetCount() == 1 })

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestWorker_DropsAfterExhaustingRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(4))
	store := &fakeStore{failures: 100}
	w := New(q, store,
		WithRetryCount(1),
		WithRetryBackoff(time.Millisecond),
	)

	go w.Run(ctx)

	q.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: &model.Planet{ID: "p-1"}})
	q.Enqueue(ctx, queue.Job{Kind: queue.JobAppendEvent, Event: &model.EvolutionEvent{ID: "e-1"}})

	// The failing planet job is dropped; the event job still lands.
	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.events) == 1
	})
	if store.planetCount() != 0 {
		t.Error("expected the failing job to be dropped")
	}

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestPool_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(64))
	store := &fakeStore{}
	pool := NewPool(4, q, store)

	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		q.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: &model.Planet{ID: "p"}})
	}

	waitFor(t, func() bool { return store.planetCount() == 20 })
	pool.Stop()
}

func TestPool_DrainsClosedQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(64))
	store := &fakeStore{}

	// Buffer everything before the workers start so Drain has a backlog
	// to flush rather than racing the enqueues.
	for i := 0; i < 50; i++ {
		q.Enqueue(ctx, queue.Job{Kind: queue.JobSavePlanet, Planet: &model.Planet{ID: "p"}})
	}
	if err := q.Close(); err != nil {
		t.Fatalf("closing queue: %v", err)
	}

	pool := NewPool(2, q, store)
	pool.Start(ctx)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer drainCancel()
	if err := pool.Drain(drainCtx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	if got := store.planetCount(); got != 50 {
		t.Errorf("planetCount = %d, want 50", got)
	}
	pool.Stop()
}
