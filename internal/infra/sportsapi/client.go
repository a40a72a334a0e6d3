// Package sportsapi calls the upstream sports data feed over HTTP and
// maps its error surface onto the resilience failure taxonomy.
package sportsapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"oddsline-core/pkg/resilience"
)

// DependencyName is the circuit breaker / metrics label for the
// upstream sports data API.
const DependencyName = "sports_api"

// Config holds client settings for the sports data API.
type Config struct {
	// BaseURL is the API root, e.g. "https://feeds.example.com/v2".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the overall per-request timeout.
	Timeout time.Duration

	// RequestsPerSecond and Burst bound the outbound call rate so the
	// retry executor cannot hammer a recovering feed.
	RequestsPerSecond float64
	Burst             int

	// MaxBodySize caps response reads to prevent memory exhaustion.
	MaxBodySize int64

	// ProbePath is the endpoint the health monitor polls.
	ProbePath string
}

// DefaultConfig returns production-ready client settings.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5.0,
		Burst:             10,
		MaxBodySize:       10 * 1024 * 1024, // 10MB
		ProbePath:         "/status",
	}
}

// ConfigFromEnv reads client settings from the environment.
// SPORTS_API_BASE_URL is required; everything else falls back to
// defaults.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = os.Getenv("SPORTS_API_BASE_URL")
	if cfg.BaseURL == "" {
		return Config{}, errors.New("SPORTS_API_BASE_URL not set")
	}
	cfg.APIKey = os.Getenv("SPORTS_API_KEY")

	if timeout := os.Getenv("SPORTS_API_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err == nil && val > 0 {
			cfg.Timeout = val
		}
	}
	if rps := os.Getenv("SPORTS_API_RPS"); rps != "" {
		if val, err := strconv.ParseFloat(rps, 64); err == nil && val > 0 {
			cfg.RequestsPerSecond = val
		}
	}
	if burst := os.Getenv("SPORTS_API_BURST"); burst != "" {
		if val, err := strconv.Atoi(burst); err == nil && val > 0 {
			cfg.Burst = val
		}
	}
	if path := os.Getenv("SPORTS_API_PROBE_PATH"); path != "" {
		cfg.ProbePath = path
	}

	return cfg, nil
}

// Client is a rate-limited HTTP client for the sports data API.
type Client struct {
	baseURL     string
	apiKey      string
	probePath   string
	maxBodySize int64
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// NewClient creates a sports API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = DefaultConfig().ProbePath
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}

	slog.Info("sports API client configured",
		slog.String("base_url", cfg.BaseURL),
		slog.Duration("timeout", cfg.Timeout),
		slog.Float64("requests_per_second", cfg.RequestsPerSecond),
		slog.Int("burst", cfg.Burst))

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		probePath:   cfg.ProbePath,
		maxBodySize: cfg.MaxBodySize,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		httpClient:  client,
	}
}

// Fetch performs a GET against the API and returns the response body.
// The token bucket is consumed before the request goes out, so retry
// attempts scheduled by the executor are rate-limited like first
// tries. All errors leave classified.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, Classify(err)
		}
		// The limiter reports waits that cannot finish before the
		// deadline as plain errors; that is local load shedding.
		return nil, resilience.ResourceExhausted(DependencyName, err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.InvalidInput(DependencyName, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read one byte past the cap to tell "exactly at the limit" from
	// "over it".
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, Classify(err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, resilience.InvalidInput(DependencyName,
			fmt.Errorf("response body exceeds %d bytes", c.maxBodySize))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Classify(&HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		})
	}

	return body, nil
}

// Probe returns a health probe that polls the configured status
// endpoint.
func (c *Client) Probe() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := c.Fetch(ctx, c.probePath)
		return err
	}
}

// errorMessage prefers the response body over the generic status text,
// truncated so a misbehaving feed cannot flood the logs.
func errorMessage(statusCode int, body []byte) string {
	const maxLen = 256

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(statusCode)
	}
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
