package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/repository"
)

func testSession(id string, expiresAt time.Time) domain.Session {
	return domain.Session{
		ID:        id,
		Mode:      domain.AuthModeCompany,
		ExpiresAt: expiresAt,
		Credentials: domain.CredentialBundle{
			APIKey: "pk",
		},
	}
}

func TestSessionStorePutGet(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	expiry := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, testSession("sess-1", expiry)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	session, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if session.Credentials.APIKey != "pk" {
		t.Fatalf("unexpected bundle: %+v", session.Credentials)
	}

	// The returned session is a copy; mutating it must not leak back.
	session.Credentials.APIKey = "mutated"
	again, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if again.Credentials.APIKey != "pk" {
		t.Fatal("store leaked internal state to a caller")
	}
}

func TestSessionStoreGetMissing(t *testing.T) {
	store := NewSessionStore()

	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreDelete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	if err := store.Put(ctx, testSession("sess-1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	removed, err := store.Delete(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to report removal")
	}

	removed, err = store.Delete(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if removed {
		t.Fatal("second delete must report absence")
	}
}

func TestSessionStoreSweep(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, testSession("live", now.Add(time.Hour))); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := store.Put(ctx, testSession("dead", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	removed, err := store.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 session swept, got %d", removed)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 session remaining, got %d", count)
	}

	if _, err := store.Get(ctx, "dead"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected swept session to be gone, got %v", err)
	}
}
