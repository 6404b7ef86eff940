package alem

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.APIKey = "secret"
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewClient(cfg), &calls
}

func TestGetLearnerLevel_DerivesLevelFromXP(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/students/by-login/alice", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"success":true,"data":{"login":"alice","xp":4500,"level":99}}`)
	})

	level, err := client.GetLearnerLevel(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, companion.Level(5), level)
}

func TestGetLearner_NotFoundIsNotRetried(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"NOT_FOUND","message":"no such student"}`)
	})

	_, err := client.GetLearner(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLearnerNotFound)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, client.BreakerState())
}

func TestGetLearner_RetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if n.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"login":"bob","xp":999}}`)
	})

	learner, err := client.GetLearner(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, companion.MinLevel, learner.Level)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetLearner_PersistentFailureIsUnavailable(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetLearner(context.Background(), "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetLearner_OpenBreakerFailsFast(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.breaker = circuitbreaker.New("test",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithTimeout(time.Hour),
		circuitbreaker.WithIsFailure(countsAsFailure),
	)

	_, err := client.GetLearner(context.Background(), "bob")
	require.Error(t, err)
	before := calls.Load()

	_, err = client.GetLearner(context.Background(), "bob")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, before, calls.Load())
}

func TestGetLearner_RejectsEmptyLogin(t *testing.T) {
	client, calls := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	_, err := client.GetLearner(context.Background(), "  ")
	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, calls.Load())
}

func TestMapper_RejectsNegativeXP(t *testing.T) {
	_, err := NewMapper().LearnerFromDTO(&LearnerDTO{Login: "x", XP: -1})
	var mapErr *MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, "xp", mapErr.Field)
}

func TestRateLimiter_BlockDelaysReservation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 1)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	assert.Zero(t, rl.reserve())
	assert.Equal(t, 100*time.Millisecond, rl.reserve())

	rl.Block(2 * time.Second)
	assert.Equal(t, 2*time.Second, rl.reserve())

	now = now.Add(2 * time.Second)
	assert.Zero(t, rl.reserve())
}
