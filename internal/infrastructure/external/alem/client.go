// Package alem implements the Alem Platform API client.
// The companion backend only reads one thing from the platform: the learner's
// XP, from which the progression level is derived.
package alem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/circuitbreaker"
	"github.com/alem-hub/alem-companion/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Alem API client.
type ClientConfig struct {
	// BaseURL is the platform root, e.g. https://platform.alem.school
	BaseURL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout bounds a single HTTP request
	Timeout time.Duration

	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	BreakerThreshold   int
	BreakerTimeout     time.Duration
	BreakerHalfOpenMax int

	RequestsPerSecond float64
	Burst             int

	Logger *slog.Logger

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:            baseURL,
		Timeout:            30 * time.Second,
		MaxAttempts:        3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      30 * time.Second,
		BreakerThreshold:   5,
		BreakerTimeout:     60 * time.Second,
		BreakerHalfOpenMax: 3,
		RequestsPerSecond:  2,
		Burst:              5,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Alem Platform API client.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
	mapper      *Mapper
}

// NewClient creates a new Alem API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	c := &Client{
		config:      config,
		httpClient:  httpClient,
		logger:      config.Logger,
		rateLimiter: NewRateLimiter(config.RequestsPerSecond, config.Burst),
		mapper:      NewMapper(),
	}

	c.breaker = circuitbreaker.PlatformBreaker(
		config.BreakerThreshold,
		config.BreakerTimeout,
		config.BreakerHalfOpenMax,
		func(name string, from, to circuitbreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		countsAsFailure,
	)

	c.retrier = retry.New(
		retry.WithMaxAttempts(config.MaxAttempts),
		retry.WithBackoff(config.RetryBaseDelay, config.RetryMaxDelay),
		retry.WithJitter(0.2),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("retrying alem request",
				"attempt", attempt, "delay", delay, "error", err)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetLearner fetches the learner's progression record by platform login.
func (c *Client) GetLearner(ctx context.Context, login string) (Learner, error) {
	const op = "GetLearner"

	login = strings.TrimSpace(login)
	if login == "" {
		return Learner{}, shared.NewDomainError("platform", op, shared.ErrEmptyValue, "login is required")
	}

	path := "/api/v1/students/by-login/" + url.PathEscape(login)

	var response APIResponse[*LearnerDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, &response); err != nil {
		return Learner{}, c.classify(op, login, err)
	}
	if response.Error != "" {
		return Learner{}, shared.WrapError("platform", op, shared.ErrExternalService,
			"platform reported an error", errors.New(response.Error))
	}

	learner, err := c.mapper.LearnerFromDTO(response.Data)
	if err != nil {
		return Learner{}, shared.WrapError("platform", op, shared.ErrExternalService,
			"unexpected learner payload", err)
	}
	return learner, nil
}

// GetLearnerLevel returns the progression level of the learner.
func (c *Client) GetLearnerLevel(ctx context.Context, login string) (companion.Level, error) {
	learner, err := c.GetLearner(ctx, login)
	if err != nil {
		return 0, err
	}
	return learner.Level, nil
}

// classify turns transport and status errors into domain errors.
func (c *Client) classify(op, login string, err error) error {
	var apiErr *APIErrorDTO
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("learner %q: %w", login, shared.ErrLearnerNotFound)
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests:
		return shared.WrapError("platform", op, shared.ErrExternalService, "request rejected", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		c.logger.Warn("alem platform unavailable", "login", login, "error", err)
		return shared.WrapError("platform", op, shared.ErrServiceUnavailable,
			"learning platform is unavailable", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest runs one logical request through the breaker, retries and rate limiter.
func (c *Client) doRequest(ctx context.Context, method, path string, result any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			return c.doSingleRequest(ctx, method, path, result)
		})
	})
}

// doSingleRequest performs a single HTTP request. Retryable failures are
// marked with retry.Retryable.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header.Get("Retry-After"))
		c.rateLimiter.Block(wait)
		return retry.Retryable(&RateLimitError{RetryAfter: wait})
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			return retry.Retryable(apiErr)
		}
		return apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func retryAfter(header string) time.Duration {
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return 60 * time.Second
}

// countsAsFailure keeps learner-level rejections (404 and friends) from
// opening the breaker.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the Alem API is reachable. Bypasses retries and the breaker.
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.doSingleRequest(ctx, http.MethodGet, "/health", nil) == nil
}

// BreakerState reports the circuit breaker state for health output.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
