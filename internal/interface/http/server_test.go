package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/application/command"
	"github.com/alem-hub/alem-companion/internal/application/query"
	"github.com/alem-hub/alem-companion/internal/contract"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

type fixedLevels map[string]companion.Level

func (f fixedLevels) GetLearnerLevel(_ context.Context, login string) (companion.Level, error) {
	level, ok := f[login]
	if !ok {
		return 0, shared.ErrLearnerNotFound
	}
	return level, nil
}

type apiFixture struct {
	server *Server
	auth   *TokenAuthority
	levels fixedLevels
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	auth, err := NewTokenAuthority("test-secret-with-enough-entropy", "alem-companion", time.Hour)
	require.NoError(t, err)

	levels := fixedLevels{}
	cmdDeps := command.Deps{
		Pets:        memory.NewPetStore(),
		Accessories: memory.NewAccessoryStore(memory.SeedCatalog()),
		Logger:      logger.Nop(),
	}
	qDeps := query.Deps{Pets: cmdDeps.Pets, Accessories: cmdDeps.Accessories, Logger: logger.Nop()}

	srv := NewServer(DefaultConfig(), Dependencies{
		CreatePet:       command.NewCreatePetHandler(cmdDeps, companion.Vitals{Happiness: 50, Energy: 50}),
		RenamePet:       command.NewRenamePetHandler(cmdDeps),
		DeletePet:       command.NewDeletePetHandler(cmdDeps),
		SyncLevel:       command.NewSyncLevelHandler(cmdDeps, levels, command.SyncLevelHandlerConfig{}),
		SetAccessory:    command.NewSetAccessoryHandler(cmdDeps),
		GetPet:          query.NewGetPetHandler(qDeps),
		ListAccessories: query.NewListAccessoriesHandler(qDeps),
		ListEquipped:    query.NewListEquippedHandler(qDeps),
		Auth:            auth,
		Checks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
		Logger: logger.Nop(),
	})
	return &apiFixture{server: srv, auth: auth, levels: levels}
}

func (f *apiFixture) do(t *testing.T, owner, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		token, err := f.auth.Issue(owner)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeInto[contract.ErrorResponse](t, rec).Error
}

// ─────────────────────────────────────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────────────────────────────────────

func TestAuth_RejectsMissingAndForeignTokens(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "", http.MethodGet, "/pet", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, contract.CodeUnauthorized, errorCode(t, rec))

	other, err := NewTokenAuthority("a-completely-different-secret!!", "alem-companion", time.Hour)
	require.NoError(t, err)
	token, err := other.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/pet", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenAuthority_Expiry(t *testing.T) {
	auth, err := NewTokenAuthority("secret", "iss", time.Minute)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return base }
	token, err := auth.Issue("alice")
	require.NoError(t, err)

	owner, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	auth.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = auth.Verify(token)
	assert.True(t, shared.IsUnauthorized(err))

	_, err = NewTokenAuthority("", "iss", time.Minute)
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Pet lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestPetLifecycle(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "alice", http.MethodGet, "/pet", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, contract.CodeNotFound, errorCode(t, rec))

	rec = api.do(t, "alice", http.MethodPost, "/pet", contract.CreatePetRequest{Name: "Byte", Species: "cat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeInto[contract.PetResponse](t, rec).Pet
	assert.Equal(t, "Byte", created.Name)
	assert.Equal(t, 1, created.Level)
	assert.Nil(t, created.LastFed)

	rec = api.do(t, "alice", http.MethodPost, "/pet", contract.CreatePetRequest{Name: "Again", Species: "dog"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, contract.CodeAlreadyExists, errorCode(t, rec))

	rec = api.do(t, "alice", http.MethodPut, "/pet/name", contract.RenamePetRequest{Name: "Pixel"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pixel", decodeInto[contract.PetResponse](t, rec).Pet.Name)

	rec = api.do(t, "alice", http.MethodDelete, "/pet", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, "alice", http.MethodGet, "/pet", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePet_Validation(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "bob", http.MethodPost, "/pet", contract.CreatePetRequest{Name: "Rex", Species: "unicorn"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, contract.CodeValidation, errorCode(t, rec))

	rec = api.do(t, "bob", http.MethodPost, "/pet", map[string]any{"name": "Rex", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progression & accessories
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncAndAccessories(t *testing.T) {
	api := newAPI(t)
	api.levels["alice"] = 7

	rec := api.do(t, "alice", http.MethodPost, "/pet", contract.CreatePetRequest{Name: "Byte", Species: "owl"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, "alice", http.MethodPost, "/pet/accessory", contract.SetAccessoryRequest{AccessoryID: "party_hat", Equip: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, contract.CodeLevelRequirement, errorCode(t, rec))

	rec = api.do(t, "alice", http.MethodPost, "/pet/sync-level", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sync := decodeInto[contract.SyncLevelResponse](t, rec)
	assert.Equal(t, 1, sync.OldLevel)
	assert.Equal(t, 7, sync.NewLevel)
	assert.Equal(t, 6, sync.LevelUps)
	assert.Equal(t, 7, sync.UserLevel)
	assert.Len(t, sync.UnlockedAccessories, 6)

	rec = api.do(t, "alice", http.MethodPost, "/pet/sync-level", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decodeInto[contract.SyncLevelResponse](t, rec)
	assert.Zero(t, again.LevelUps)
	assert.Empty(t, again.UnlockedAccessories)

	rec = api.do(t, "alice", http.MethodGet, "/pet/accessories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeInto[contract.AccessoriesResponse](t, rec)
	assert.Equal(t, 7, listing.UserLevel)
	for _, a := range listing.AvailableAccessories {
		assert.Equal(t, a.LevelRequired <= 7, a.Unlocked, a.ID)
	}

	rec = api.do(t, "alice", http.MethodPost, "/pet/accessory", contract.SetAccessoryRequest{AccessoryID: "party_hat", Equip: true})
	require.Equal(t, http.StatusOK, rec.Code)
	set := decodeInto[contract.SetAccessoryResponse](t, rec)
	assert.True(t, set.Equipped)
	assert.Equal(t, contract.StatsDTO{Happiness: 55, Energy: 50}, set.PetStats)

	rec = api.do(t, "alice", http.MethodPost, "/pet/accessory", contract.SetAccessoryRequest{AccessoryID: "wizard_hat", Equip: true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, contract.CodeSlotOccupied, errorCode(t, rec))

	rec = api.do(t, "alice", http.MethodGet, "/pet/accessories/equipped", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	equipped := decodeInto[contract.EquippedResponse](t, rec)
	require.Len(t, equipped.EquippedAccessories, 1)
	assert.Equal(t, "party_hat", equipped.EquippedAccessories[0].ID)
}

func TestSyncLevel_UnknownLearnerIsUnavailable(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, "ghost", http.MethodPost, "/pet", contract.CreatePetRequest{Name: "Boo", Species: "fox"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, "ghost", http.MethodPost, "/pet/sync-level", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, contract.CodeUnavailable, errorCode(t, rec))
}

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure
// ─────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeInto[contract.HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	api.server.deps.Checks["redis"] = func(context.Context) error { return errors.New("dial tcp: refused") }
	rec = api.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decodeInto[contract.HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "ok", health.Checks["postgres"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrCompanionNotFound, http.StatusNotFound, contract.CodeNotFound},
		{shared.ErrSessionInvalid, http.StatusUnauthorized, contract.CodeUnauthorized},
		{shared.ErrNotEquipped, http.StatusUnprocessableEntity, contract.CodeValidation},
		{command.ErrSyncInProgress, http.StatusServiceUnavailable, contract.CodeUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, contract.CodeUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, contract.CodeInternal},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{logger: logger.Nop()}
	h := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, contract.CodeInternal, errorCode(t, rec))
}
