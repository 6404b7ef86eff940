// Package petapi is the HTTP client for the companion backend. It implements
// engine.Backend so the terminal client can host the engine against cmd/api.
package petapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alem-hub/alem-companion/internal/contract"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/engine"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the backend client.
type Config struct {
	// BaseURL of cmd/api, e.g. http://localhost:8080
	BaseURL string

	// Token is the owner's bearer token
	Token string

	// Timeout bounds a single request when the caller's context has no deadline
	Timeout time.Duration

	Logger *slog.Logger

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client talks to the companion backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ engine.Backend = (*Client)(nil)

// New creates a new backend client.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPANION
// ══════════════════════════════════════════════════════════════════════════════

// GetPet returns shared.ErrCompanionNotFound when the owner has none yet.
func (c *Client) GetPet(ctx context.Context) (*companion.Pet, error) {
	var resp contract.PetResponse
	if err := c.do(ctx, "GetPet", http.MethodGet, "/pet", nil, &resp, shared.ErrCompanionNotFound); err != nil {
		return nil, err
	}
	return resp.Pet.ToDomain(), nil
}

func (c *Client) CreatePet(ctx context.Context, name string, species companion.Species) (*companion.Pet, error) {
	req := contract.CreatePetRequest{Name: name, Species: string(species)}
	var resp contract.PetResponse
	if err := c.do(ctx, "CreatePet", http.MethodPost, "/pet", req, &resp, shared.ErrCompanionNotFound); err != nil {
		return nil, err
	}
	return resp.Pet.ToDomain(), nil
}

func (c *Client) RenamePet(ctx context.Context, name string) (*companion.Pet, error) {
	var resp contract.PetResponse
	err := c.do(ctx, "RenamePet", http.MethodPut, "/pet/name", contract.RenamePetRequest{Name: name}, &resp, shared.ErrCompanionNotFound)
	if err != nil {
		return nil, err
	}
	return resp.Pet.ToDomain(), nil
}

func (c *Client) DeletePet(ctx context.Context) error {
	return c.do(ctx, "DeletePet", http.MethodDelete, "/pet", nil, nil, shared.ErrCompanionNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION & ACCESSORIES
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) SyncLevel(ctx context.Context) (engine.LevelReport, error) {
	var resp contract.SyncLevelResponse
	if err := c.do(ctx, "SyncLevel", http.MethodPost, "/pet/sync-level", nil, &resp, shared.ErrCompanionNotFound); err != nil {
		return engine.LevelReport{}, err
	}
	return engine.LevelReport{
		OldLevel:  companion.Level(resp.OldLevel),
		NewLevel:  companion.Level(resp.NewLevel),
		LevelUps:  resp.LevelUps,
		Unlocked:  contract.AccessoriesToDomain(resp.UnlockedAccessories),
		UserLevel: companion.Level(resp.UserLevel),
	}, nil
}

func (c *Client) ListAccessories(ctx context.Context) (engine.AccessoryListing, error) {
	var resp contract.AccessoriesResponse
	if err := c.do(ctx, "ListAccessories", http.MethodGet, "/pet/accessories", nil, &resp, shared.ErrCompanionNotFound); err != nil {
		return engine.AccessoryListing{}, err
	}
	entries := make([]engine.CatalogEntry, 0, len(resp.AvailableAccessories))
	for _, a := range resp.AvailableAccessories {
		entries = append(entries, engine.CatalogEntry{Accessory: a.AccessoryDTO.ToDomain(), Unlocked: a.Unlocked})
	}
	return engine.AccessoryListing{Entries: entries, UserLevel: companion.Level(resp.UserLevel)}, nil
}

func (c *Client) SetAccessory(ctx context.Context, accessoryID string, equip bool) (engine.EquipResult, error) {
	req := contract.SetAccessoryRequest{AccessoryID: accessoryID, Equip: equip}
	var resp contract.SetAccessoryResponse
	if err := c.do(ctx, "SetAccessory", http.MethodPost, "/pet/accessory", req, &resp, shared.ErrAccessoryNotFound); err != nil {
		return engine.EquipResult{}, err
	}
	return engine.EquipResult{
		AccessoryID: resp.AccessoryID,
		Equipped:    resp.Equipped,
		Stats:       resp.PetStats.ToDomain(),
	}, nil
}

func (c *Client) ListEquipped(ctx context.Context) (engine.EquippedListing, error) {
	var resp contract.EquippedResponse
	if err := c.do(ctx, "ListEquipped", http.MethodGet, "/pet/accessories/equipped", nil, &resp, shared.ErrCompanionNotFound); err != nil {
		return engine.EquippedListing{}, err
	}
	return engine.EquippedListing{
		Accessories: contract.AccessoriesToDomain(resp.EquippedAccessories),
		Stats:       resp.PetStats.ToDomain(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// do performs one request. No retries: the engine's next tick is the retry.
func (c *Client) do(ctx context.Context, op, method, path string, body, result any, notFound error) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return shared.WrapError("backend", op, shared.ErrServiceUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return shared.WrapError("backend", op, shared.ErrServiceUnavailable, "read response", err)
	}

	c.logger.Debug("backend request",
		"op", op, "method", method, "path", path,
		"status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode >= 400 {
		return statusError(op, resp.StatusCode, payload, notFound)
	}

	if result != nil {
		if err := json.Unmarshal(payload, result); err != nil {
			return shared.WrapError("backend", op, shared.ErrExternalService,
				shared.ErrBackendInvalidAnswer.Message, err)
		}
	}
	return nil
}

// statusError maps an error answer to a domain error. The server's message is
// kept; the kind comes from the status and error code.
func statusError(op string, status int, payload []byte, notFound error) error {
	var body contract.ErrorResponse
	_ = json.Unmarshal(payload, &body)
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = shared.ErrSessionInvalid
	case status == http.StatusNotFound:
		kind = notFound
	case status == http.StatusForbidden, body.Error == contract.CodeLevelRequirement:
		kind = shared.ErrLevelRequirement
	case status == http.StatusConflict && body.Error == contract.CodeSlotOccupied:
		kind = shared.ErrSlotOccupied
	case status == http.StatusConflict && body.Error == contract.CodeAlreadyExists:
		kind = shared.ErrCompanionAlreadyExists
	case status == http.StatusConflict:
		kind = shared.ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = shared.ErrInvalidInput
	case status == http.StatusTooManyRequests || status >= 500:
		kind = shared.ErrBackendUnavailable
	default:
		kind = shared.ErrBackendInvalidAnswer
	}
	return shared.NewDomainError("backend", op, kind, body.Message)
}
