package queue

import (
	"context"
	"testing"
	"time"

	"github.com/planetforge/engine/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job := Job{Kind: JobSaveSession, Summary: &model.SessionSummary{SessionID: "s-1"}}
	if !q.Enqueue(ctx, job) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	jobChan := q.Dequeue(ctx)
	got := <-jobChan
	if got.Kind != JobSaveSession || got.Summary.SessionID != "s-1" {
		t.Errorf("unexpected job %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	planet := &model.Planet{ID: "p-1"}
	if !q.Enqueue(ctx, Job{Kind: JobSavePlanet, Planet: planet}) {
		t.Error("first enqueue should succeed")
	}
	if !q.Enqueue(ctx, Job{Kind: JobSavePlanet, Planet: planet}) {
		t.Error("second enqueue should succeed")
	}
	if q.Enqueue(ctx, Job{Kind: JobSavePlanet, Planet: planet}) {
		t.Error("enqueue beyond capacity should fail")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	event := &model.EvolutionEvent{ID: "e-1"}
	q.Enqueue(ctx, Job{Kind: JobAppendEvent, Event: event})

	if q.IsClosed() {
		t.Error("queue should not be closed yet")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !q.IsClosed() {
		t.Error("queue should report closed")
	}

	// Closing twice is a no-op.
	if err := q.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if q.Enqueue(ctx, Job{Kind: JobAppendEvent, Event: event}) {
		t.Error("enqueue after close should fail")
	}

	// Queued jobs remain drainable after close.
	select {
	case got, ok := <-q.Dequeue(ctx):
		if !ok {
			t.Fatal("expected the buffered job before channel close")
		}
		if got.Event.ID != "e-1" {
			t.Errorf("unexpected job %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining closed queue")
	}
}

func TestInMemoryQueue_DequeueOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()

	ids := []string{"e-1", "e-2", "e-3"}
	for _, id := range ids {
		if !q.Enqueue(ctx, Job{Kind: JobAppendEvent, Event: &model.EvolutionEvent{ID: id}}) {
			t.Fatalf("enqueue %s failed", id)
		}
	}

	jobChan := q.Dequeue(ctx)
	for _, want := range ids {
		select {
		case got := <-jobChan:
			if got.Event.ID != want {
				t.Errorf("expected %s, got %s", want, got.Event.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
