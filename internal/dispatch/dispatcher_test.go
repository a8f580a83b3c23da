package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueOrdering(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	base := time.Now()

	if err := q.Enqueue(ctx, "late", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "early", base.Add(-time.Minute)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "now", base); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	id, ok, err := q.PopDue(ctx, base)
	if err != nil || !ok {
		t.Fatalf("PopDue = %q, %v, %v", id, ok, err)
	}
	if id != "early" {
		t.Errorf("first pop = %q, want early", id)
	}

	id, ok, _ = q.PopDue(ctx, base)
	if !ok || id != "now" {
		t.Errorf("second pop = %q, %v; want now", id, ok)
	}

	// "late" is not yet due.
	if _, ok, _ := q.PopDue(ctx, base); ok {
		t.Error("popped a job before its run-at time")
	}

	id, ok, _ = q.PopDue(ctx, base.Add(3*time.Minute))
	if !ok || id != "late" {
		t.Errorf("final pop = %q, %v; want late", id, ok)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 0 {
		t.Errorf("depth = %d, want 0", depth)
	}
}

func TestEnqueueUpdatesRunAt(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	base := time.Now()

	q.Enqueue(ctx, "job-1", base.Add(time.Hour))
	q.Enqueue(ctx, "job-1", base.Add(-time.Second))

	depth, _ := q.Depth(ctx)
	if depth != 1 {
		t.Fatalf("depth = %d, want 1", depth)
	}

	id, ok, _ := q.PopDue(ctx, base)
	if !ok || id != "job-1" {
		t.Errorf("pop = %q, %v; want job-1", id, ok)
	}
}

func TestDispatcherPaths(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	d := NewDispatcher(q)

	if err := d.EnqueueNow(ctx, "immediate"); err != nil {
		t.Fatalf("EnqueueNow: %v", err)
	}
	at := time.Now().Add(time.Hour)
	if err := d.EnqueueAt(ctx, "deferred", at); err != nil {
		t.Fatalf("EnqueueAt: %v", err)
	}

	id, ok, _ := q.PopDue(ctx, time.Now())
	if !ok || id != "immediate" {
		t.Errorf("pop = %q, %v; want immediate", id, ok)
	}
	if _, ok, _ := q.PopDue(ctx, time.Now()); ok {
		t.Error("deferred job popped early")
	}
}
