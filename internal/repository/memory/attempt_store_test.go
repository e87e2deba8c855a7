package memory

import (
	"context"
	"testing"
	"time"
)

func TestAttemptStoreCountInWindow(t *testing.T) {
	store := NewAttemptStore()
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

func TestAttemptStoreTrim(t *testing.T) {
	store := NewAttemptStore()
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
	store := NewAttemptStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
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

func TestAttemptStoreOldestInWindowEmpty(t *testing.T) {
	store := NewAttemptStore()

	_, found, err := store.OldestInWindow(context.Background(), "nobody", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("OldestInWindow returned error: %v", err)
	}
	if found {
		t.Fatal("expected no attempt for an unknown key")
	}
}

func TestAttemptStoreRejectsNonPositiveWindow(t *testing.T) {
	store := NewAttemptStore()

	if _, err := store.CountInWindow(context.Background(), "caller-1", 0, time.Now()); err == nil {
		t.Fatal("expected an error for a zero window")
	}
}
