package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticate_Success(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token" {
			t.Errorf("path = %q, want /auth/token", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}
		fmt.Fprint(w, `{"access_token":"tok-123","expires_in":3600}`)
	}))
	defer server.Close()

	token, err := Authenticate(context.Background(), server.Client(), server.URL, Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if token.AccessToken != "tok-123" {
		t.Errorf("AccessToken = %q, want tok-123", token.AccessToken)
	}

	expiresIn := time.Until(token.ExpiresAt)
	if expiresIn < 59*time.Minute || expiresIn > 61*time.Minute {
		t.Errorf("ExpiresAt = %v, want ~1h from now", expiresIn)
	}

	want := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "id",
		"client_secret": "secret",
	}
	for key, value := range want {
		if gotForm[key] != value {
			t.Errorf("form %s = %q, want %q", key, gotForm[key], value)
		}
	}
}

func TestAuthenticate_DefaultLifetime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok-123"}`)
	}))
	defer server.Close()

	token, err := Authenticate(context.Background(), server.Client(), server.URL, Credentials{"id", "secret"})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	expiresIn := time.Until(token.ExpiresAt)
	if expiresIn < 23*time.Hour || expiresIn > 25*time.Hour {
		t.Errorf("ExpiresAt = %v from now, want ~24h", expiresIn)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer server.Close()

	_, err := Authenticate(context.Background(), server.Client(), server.URL, Credentials{"id", "secret"})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer server.Close()

	_, err := Authenticate(context.Background(), server.Client(), server.URL, Credentials{"id", "wrong"})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestTokenValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token Token
		want  bool
	}{
		{"fresh", Token{AccessToken: "t", ExpiresAt: now.Add(1 * time.Hour)}, true},
		{"expired", Token{AccessToken: "t", ExpiresAt: now.Add(-1 * time.Hour)}, false},
		{"inside refresh margin", Token{AccessToken: "t", ExpiresAt: now.Add(1 * time.Minute)}, false},
		{"empty", Token{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		t.Setenv(EnvClientID, "id")
		t.Setenv(EnvClientSecret, "secret")

		creds, err := CredentialsFromEnv()
		if err != nil {
			t.Fatalf("CredentialsFromEnv failed: %v", err)
		}
		if creds.ClientID != "id" || creds.ClientSecret != "secret" {
			t.Errorf("creds = %+v", creds)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(EnvClientID, "")
		t.Setenv(EnvClientSecret, "")

		if _, err := CredentialsFromEnv(); err == nil {
			t.Error("expected error for missing credentials")
		}
	})
}
