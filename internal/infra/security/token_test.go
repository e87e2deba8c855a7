package security

import "testing"

func TestGenerateSessionToken(t *testing.T) {
	first, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if len(first) != 43 {
		t.Fatalf("expected 43 characters for 32 bytes, got %d", len(first))
	}

	second, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if first == second {
		t.Fatal("two tokens must not collide")
	}
}

func TestGenerateSessionTokenRejectsNonPositiveLength(t *testing.T) {
	if _, err := GenerateSessionToken(0); err == nil {
		t.Fatal("expected an error for zero length")
	}
}

func TestCallerIdentity(t *testing.T) {
	a := CallerIdentity("203.0.113.7", "client/1.0")
	b := CallerIdentity("203.0.113.7", "client/1.0")
	if a != b {
		t.Fatal("caller identity must be deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(a))
	}

	if CallerIdentity("203.0.113.7", "client/2.0") == a {
		t.Fatal("a different client signature must change the identity")
	}
	if CallerIdentity("203.0.113.8", "client/1.0") == a {
		t.Fatal("a different address must change the identity")
	}
}
