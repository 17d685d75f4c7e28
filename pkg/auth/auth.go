// Package auth implements the Meridian client-credentials flow: exchanging a
// client ID and secret for a short-lived bearer token, and managing that
// token's lifetime through a session with pluggable storage.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTokenLifetime is assumed when the token endpoint omits expires_in.
// Meridian tokens are valid for 24 hours.
const DefaultTokenLifetime = 24 * time.Hour

// refreshMargin is subtracted from the expiry when deciding whether a token
// is still usable, so a token is refreshed before it lapses mid-request.
const refreshMargin = 5 * time.Minute

// Environment variable names for credential loading.
const (
	EnvClientID     = "MERIDIAN_CLIENT_ID"
	EnvClientSecret = "MERIDIAN_CLIENT_SECRET"
)

// Credentials is the long-lived client ID / secret pair. Both values are
// opaque and must never be logged.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialsFromEnv reads credentials from the process environment.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return Credentials{}, fmt.Errorf("%s and %s must be set", EnvClientID, EnvClientSecret)
	}
	return creds, nil
}

// Token is a short-lived bearer token. A token value is immutable for its
// validity window; refreshing produces a new Token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be attached to requests at the
// given instant, leaving the refresh margin as headroom.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-refreshMargin))
}

// AuthError indicates the token endpoint did not return a usable token. It is
// terminal for the caller and never retried.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticate exchanges credentials for a bearer token via one POST to
// {baseURL}/auth/token. No retry or backoff is applied here; a failed login
// is surfaced immediately as *AuthError.
func Authenticate(ctx context.Context, httpClient *http.Client, baseURL string, creds Credentials) (Token, error) {
	form := url.Values{
		"grant_type":    []string{"client_credentials"},
		"client_id":     []string{creds.ClientID},
		"client_secret": []string{creds.ClientSecret},
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/auth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &AuthError{Message: "create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Token{}, &AuthError{Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Message: "read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	accessToken := gjson.GetBytes(body, "access_token").String()
	if accessToken == "" {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Message: "response contains no access_token"}
	}

	lifetime := DefaultTokenLifetime
	if expiresIn := gjson.GetBytes(body, "expires_in"); expiresIn.Exists() {
		lifetime = time.Duration(expiresIn.Int()) * time.Second
	}

	return Token{
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(lifetime),
	}, nil
}
