package logger

import (
	"context"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "joh***@example.com"},
		{"ab@example.com", "ab***@example.com"},
		{"not-an-email", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"203.0.113.7", "203.0.*.*"},
		{"2001:db8:85a3:8d3:1319:8a2e:370:7348", "2001:db8:85a3:8d3:*:*:*:*"},
		{"garbage", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskIP(tc.in); got != tc.want {
			t.Errorf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"supersecretvalue", "su***ue"},
		{"abcd", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskSecret(tc.in); got != tc.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}
