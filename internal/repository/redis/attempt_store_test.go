package redis

import (
	"context"
	"testing"
	"time"
)

func newTestAttemptStore(t *testing.T) *AttemptStore {
	t.Helper()

	client, _ := newTestRedis(t)
	return NewAttemptStore(client, AttemptStoreConfig{
		KeyPrefix: "pgw:attempts",
		TTL:       15 * time.Minute,
	})
}

func TestAttemptStoreRecordAndCount(t *testing.T) {
	store := newTestAttemptStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{0, 10 * time.Second, 90 * time.Second} {
		if err := store.Record(ctx, "caller-1", base.Add(offset)); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	count, err := store.CountInWindow(ctx, "caller-1", time.Minute, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("CountInWindow returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts inside the window, got %d", count)
	}
}

func TestAttemptStoreSameInstantAttemptsCounted(t *testing.T) {
	store := newTestAttemptStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two attempts on the same nanosecond must both count.
	if err := store.Record(ctx, "caller-1", at); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := store.Record(ctx, "caller-1", at); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	count, err := store.CountInWindow(ctx, "caller-1", time.Minute, at)
	if err != nil {
		t.Fatalf("CountInWindow returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both same-instant attempts counted, got %d", count)
	}
}

func TestAttemptStoreTrim(t *testing.T) {
	store := newTestAttemptStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, "caller-1", base); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := store.Record(ctx, "caller-1", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	if err := store.Trim(ctx, "caller-1", time.Minute, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("Trim returned error: %v", err)
	}

	count, err := store.CountInWindow(ctx, "caller-1", time.Hour, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("CountInWindow returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the recent attempt to survive, got %d", count)
	}
}

func TestAttemptStoreOldestInWindow(t *testing.T) {
	store := newTestAttemptStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{30 * time.Second, 10 * time.Second, 50 * time.Second} {
		if err := store.Record(ctx, "caller-1", base.Add(offset)); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	oldest, found, err := store.OldestInWindow(ctx, "caller-1", time.Minute, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("OldestInWindow returned error: %v", err)
	}
	if !found {
		t.Fatal("expected an attempt inside the window")
	}
	if !oldest.Equal(base.Add(10 * time.Second)) {
		t.Fatalf("expected oldest at +10s, got %v", oldest)
	}
}

func TestAttemptStoreKeyTTLRefreshed(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewAttemptStore(client, AttemptStoreConfig{
		KeyPrefix: "pgw:attempts",
		TTL:       15 * time.Minute,
	})

	if err := store.Record(context.Background(), "caller-1", time.Now()); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	ttl := server.TTL("pgw:attempts:caller-1")
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("expected ttl within (0, 15m], got %v", ttl)
	}
}
