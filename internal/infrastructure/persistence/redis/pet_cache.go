package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// PetCache implements companion.Cache on top of Cache.
type PetCache struct {
	cache *Cache
}

// NewPetCache creates a new PetCache.
func NewPetCache(cache *Cache) *PetCache {
	return &PetCache{cache: cache}
}

var _ companion.Cache = (*PetCache)(nil)

// GetPet returns ErrCacheMiss when the owner's companion is not cached.
func (p *PetCache) GetPet(ctx context.Context, ownerID string) (*companion.Pet, error) {
	var pet companion.Pet
	if err := p.cache.Get(ctx, PetKey(ownerID), &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

func (p *PetCache) SetPet(ctx context.Context, pet *companion.Pet, ttl time.Duration) error {
	if pet == nil {
		return nil
	}
	return p.cache.Set(ctx, PetKey(pet.OwnerID), pet, ttl)
}

func (p *PetCache) InvalidatePet(ctx context.Context, ownerID string) error {
	return p.cache.Delete(ctx, PetKey(ownerID))
}

func (p *PetCache) GetCatalog(ctx context.Context) (companion.Catalog, error) {
	var catalog companion.Catalog
	if err := p.cache.Get(ctx, CatalogKey(), &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (p *PetCache) SetCatalog(ctx context.Context, catalog companion.Catalog, ttl time.Duration) error {
	return p.cache.Set(ctx, CatalogKey(), catalog, ttl)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LevelCache remembers platform levels so that the worker and the API do not
// ask the platform for the same learner twice within ttl.
type LevelCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLevelCache creates a LevelCache.
func NewLevelCache(cache *Cache, ttl time.Duration) *LevelCache {
	return &LevelCache{cache: cache, ttl: ttl}
}

// GetLevel returns ErrCacheMiss when the level is unknown or expired.
func (l *LevelCache) GetLevel(ctx context.Context, login string) (companion.Level, error) {
	var level int
	if err := l.cache.Get(ctx, LevelKey(login), &level); err != nil {
		return 0, err
	}
	return companion.Level(level), nil
}

func (l *LevelCache) SetLevel(ctx context.Context, login string, level companion.Level) error {
	return l.cache.Set(ctx, LevelKey(login), int(level), l.ttl)
}

// ForgetLevel drops the cached level of a learner.
func (l *LevelCache) ForgetLevel(ctx context.Context, login string) error {
	return l.cache.Delete(ctx, LevelKey(login))
}

// IsMiss reports whether err means "not cached".
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
