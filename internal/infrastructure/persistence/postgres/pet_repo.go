package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PET REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PetRepository implements companion.Repository for PostgreSQL.
type PetRepository struct {
	conn *Connection
}

// NewPetRepository creates a new PetRepository.
func NewPetRepository(conn *Connection) *PetRepository {
	return &PetRepository{conn: conn}
}

var _ companion.Repository = (*PetRepository)(nil)

const petColumns = `id, owner_id, name, species, level, happiness, energy,
	last_fed, last_played, created_at, updated_at`

// Create stores a new companion. The unique owner_id column enforces one per owner.
func (r *PetRepository) Create(ctx context.Context, p *companion.Pet) error {
	query := `INSERT INTO pets (` + petColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		string(p.Species),
		int(p.Level),
		p.Vitals.Happiness,
		p.Vitals.Energy,
		nullTime(p.LastFed),
		nullTime(p.LastPlayed),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrCompanionAlreadyExists
		}
		return fmt.Errorf("failed to create pet: %w", err)
	}
	return nil
}

// GetByOwner returns the owner's companion.
func (r *PetRepository) GetByOwner(ctx context.Context, ownerID string) (*companion.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE owner_id = $1`

	p, err := scanPet(r.conn.QueryRow(ctx, query, ownerID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompanionNotFound
		}
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return p, nil
}

// Update persists name, vitals and interaction times. The stored level never
// goes down even if a stale copy is written.
func (r *PetRepository) Update(ctx context.Context, p *companion.Pet) error {
	query := `
		UPDATE pets SET
			name = $2,
			level = GREATEST(level, $3),
			happiness = $4,
			energy = $5,
			last_fed = $6,
			last_played = $7,
			updated_at = $8
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		p.ID,
		p.Name,
		int(p.Level),
		p.Vitals.Happiness,
		p.Vitals.Energy,
		nullTime(p.LastFed),
		nullTime(p.LastPlayed),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update pet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCompanionNotFound
	}
	return nil
}

// RaiseLevel updates the level alone so concurrent renames and interactions
// are not overwritten.
func (r *PetRepository) RaiseLevel(ctx context.Context, petID string, level companion.Level, at time.Time) error {
	query := `
		UPDATE pets SET
			level = GREATEST(level, $2),
			updated_at = $3
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, petID, int(level), at)
	if err != nil {
		return fmt.Errorf("failed to raise pet level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCompanionNotFound
	}
	return nil
}

// Delete removes the companion; equipped accessories go with it (ON DELETE CASCADE).
func (r *PetRepository) Delete(ctx context.Context, ownerID string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM pets WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete pet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCompanionNotFound
	}
	return nil
}

// List pages through all companions in creation order.
func (r *PetRepository) List(ctx context.Context, opts companion.ListOptions) ([]*companion.Pet, error) {
	if opts.Limit <= 0 {
		opts = companion.DefaultListOptions()
	}
	query := `SELECT ` + petColumns + ` FROM pets ORDER BY created_at, id LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	defer rows.Close()

	var pets []*companion.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pet: %w", err)
		}
		pets = append(pets, p)
	}
	return pets, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanPet(row pgx.Row) (*companion.Pet, error) {
	var (
		p                   companion.Pet
		species             string
		level               int
		lastFed, lastPlayed *time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&species,
		&level,
		&p.Vitals.Happiness,
		&p.Vitals.Energy,
		&lastFed,
		&lastPlayed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Species = companion.Species(species)
	p.Level = companion.Level(level)
	if lastFed != nil {
		p.LastFed = *lastFed
	}
	if lastPlayed != nil {
		p.LastPlayed = *lastPlayed
	}
	return &p, nil
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
