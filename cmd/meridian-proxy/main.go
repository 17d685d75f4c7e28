// meridian-proxy forwards local HTTP requests to the Meridian API with
// authentication, retry, and rate-limit discipline applied. Credentials come
// from the environment (or a .env file); callers never see the token.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/meridianhq/meridian-api-client/pkg/api"
	"github.com/meridianhq/meridian-api-client/pkg/auth"
	"github.com/meridianhq/meridian-api-client/pkg/client"
	"github.com/meridianhq/meridian-api-client/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	}).With().Str("component", "meridian-proxy").Logger()

	creds, err := auth.CredentialsFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Missing credentials")
	}

	cfg := client.DefaultConfig(creds)
	cfg.BaseURL = getEnv("MERIDIAN_BASE_URL", client.DefaultBaseURL)

	// Optional Redis for token and cooldown state shared across replicas.
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		cfg.Redis = redisClient
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")
	}

	meridian, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Meridian client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", proxyHandler(meridian))

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().
		Str("addr", addr).
		Str("upstream", cfg.BaseURL).
		Msg("Starting Meridian proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// proxyHandler maps /api/{endpoint} onto the upstream endpoint, carrying the
// caller's method, query, and body through the client's retry discipline.
func proxyHandler(meridian *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "only GET and POST are supported", http.StatusMethodNotAllowed)
			return
		}

		endpoint := r.URL.Path[len("/api/"):]
		if endpoint == "" {
			http.Error(w, "missing endpoint", http.StatusBadRequest)
			return
		}

		req := api.Request{
			Method:   r.Method,
			Endpoint: endpoint,
			Query:    r.URL.Query(),
		}
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "read request body", http.StatusBadRequest)
				return
			}
			req.Body = body
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		env, err := meridian.Do(ctx, req)
		if err != nil {
			if apiErr, ok := asAPIError(err); ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(apiErr.StatusCode)
				w.Write(apiErr.Body)
				return
			}
			http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(env.StatusCode)
		w.Write(env.Body)
	}
}

func asAPIError(err error) (*client.APIError, bool) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
