package handlers

import (
	"fmt"
	"testing"
	"time"
)

func TestIdempotencyStoreExpiresEntries(t *testing.T) {
	store := newIdempotencyStore()
	store.ttl = time.Minute

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put("key-1", 42, "job-1")
	if entry, ok := store.Get("key-1"); !ok || entry.JobID != "job-1" {
		t.Fatalf("expected fresh entry, got %+v ok=%v", entry, ok)
	}

	current = current.Add(2 * time.Minute)
	if _, ok := store.Get("key-1"); ok {
		t.Fatal("expected entry expired after ttl")
	}

	// An expired key can be reused for a new submission.
	store.Put("key-1", 7, "job-2")
	if entry, ok := store.Get("key-1"); !ok || entry.JobID != "job-2" {
		t.Fatalf("expected replaced entry, got %+v ok=%v", entry, ok)
	}
}

func TestIdempotencyStoreEvictsOldestAtCapacity(t *testing.T) {
	store := newIdempotencyStore()
	store.maxEntries = 3

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		store.Put(fmt.Sprintf("key-%d", i), uint64(i), fmt.Sprintf("job-%d", i))
		current = current.Add(time.Second)
	}

	if _, ok := store.Get("key-0"); ok {
		t.Fatal("expected oldest entry evicted at capacity")
	}
	for i := 1; i < 4; i++ {
		if _, ok := store.Get(fmt.Sprintf("key-%d", i)); !ok {
			t.Fatalf("expected entry key-%d retained", i)
		}
	}
}
