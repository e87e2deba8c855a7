package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestSessionStorePutSetsTTL(t *testing.T) {
	client, server := newTestRedis(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSessionStore(client, "pgw:session").
		WithClock(func() time.Time { return base })

	session := domain.Session{
		ID:        "sess-1",
		Mode:      domain.AuthModeCompany,
		ExpiresAt: base.Add(time.Hour),
		Credentials: domain.CredentialBundle{
			APIKey: "pk",
		},
	}

	if err := store.Put(context.Background(), session); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	ttl := server.TTL("pgw:session:sess-1")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl within (0, 1h], got %v", ttl)
	}

	loaded, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.Credentials.APIKey != "pk" {
		t.Fatalf("round trip lost the bundle: %+v", loaded.Credentials)
	}
	if loaded.Mode != domain.AuthModeCompany {
		t.Fatalf("round trip lost the mode: %s", loaded.Mode)
	}
}

func TestSessionStorePutSkipsExpired(t *testing.T) {
	client, server := newTestRedis(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSessionStore(client, "pgw:session").
		WithClock(func() time.Time { return base })

	session := domain.Session{ID: "sess-1", ExpiresAt: base.Add(-time.Minute)}
	if err := store.Put(context.Background(), session); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if server.Exists("pgw:session:sess-1") {
		t.Fatal("an already-expired session must not be written")
	}
}

func TestSessionStoreGetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client, "pgw:session")

	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreExpiryViaTTL(t *testing.T) {
	client, server := newTestRedis(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSessionStore(client, "pgw:session").
		WithClock(func() time.Time { return base })

	session := domain.Session{ID: "sess-1", ExpiresAt: base.Add(time.Minute)}
	if err := store.Put(context.Background(), session); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, err := store.Get(context.Background(), "sess-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected the key to age out, got %v", err)
	}
}

func TestSessionStoreDeleteAndCount(t *testing.T) {
	client, _ := newTestRedis(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := NewSessionStore(client, "pgw:session").
		WithClock(func() time.Time { return base })

	ctx := context.Background()
	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if err := store.Put(ctx, domain.Session{ID: id, ExpiresAt: base.Add(time.Hour)}); err != nil {
			t.Fatalf("Put returned error: %v", err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 sessions, got %d", count)
	}

	removed, err := store.Delete(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to report removal")
	}

	removed, err = store.Delete(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if removed {
		t.Fatal("second delete must report absence")
	}
}
