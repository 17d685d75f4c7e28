package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTokenServer serves incrementing tokens and counts issuance.
func newTokenServer(t *testing.T, expiresIn int) (*httptest.Server, *int) {
	t.Helper()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d}`, calls, expiresIn)
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func TestSessionToken_CachedAcrossCalls(t *testing.T) {
	server, calls := newTokenServer(t, 86400)

	session := NewSession(SessionConfig{
		BaseURL:     server.URL,
		Credentials: Credentials{"id", "secret"},
		HTTPClient:  server.Client(),
		Logger:      zerolog.Nop(),
	})

	ctx := context.Background()

	first, err := session.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	second, err := session.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	if first != "tok-1" || second != "tok-1" {
		t.Errorf("tokens = %q, %q, want tok-1 both times", first, second)
	}
	if *calls != 1 {
		t.Errorf("auth calls = %d, want 1", *calls)
	}
}

func TestSessionToken_RefreshAfterInvalidate(t *testing.T) {
	server, calls := newTokenServer(t, 86400)

	session := NewSession(SessionConfig{
		BaseURL:     server.URL,
		Credentials: Credentials{"id", "secret"},
		HTTPClient:  server.Client(),
		Logger:      zerolog.Nop(),
	})

	ctx := context.Background()

	if _, err := session.Token(ctx); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if err := session.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	token, err := session.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "tok-2" {
		t.Errorf("token = %q, want tok-2", token)
	}
	if *calls != 2 {
		t.Errorf("auth calls = %d, want 2", *calls)
	}
}

func TestSessionToken_RefreshOnExpiry(t *testing.T) {
	server, calls := newTokenServer(t, 86400)

	store := NewMemoryStore()
	// Seed a token already inside the refresh margin.
	if err := store.Set(context.Background(), Token{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(1 * time.Minute),
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	session := NewSession(SessionConfig{
		BaseURL:     server.URL,
		Credentials: Credentials{"id", "secret"},
		HTTPClient:  server.Client(),
		Store:       store,
		Logger:      zerolog.Nop(),
	})

	token, err := session.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("token = %q, want tok-1 (refreshed)", token)
	}
	if *calls != 1 {
		t.Errorf("auth calls = %d, want 1", *calls)
	}
}

func TestSessionToken_AuthFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	session := NewSession(SessionConfig{
		BaseURL:     server.URL,
		Credentials: Credentials{"id", "wrong"},
		HTTPClient:  server.Client(),
		Logger:      zerolog.Nop(),
	})

	if _, err := session.Token(context.Background()); err == nil {
		t.Error("expected authentication error")
	}
}
