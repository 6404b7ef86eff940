package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AccessoryRepository implements companion.AccessoryRepository for PostgreSQL.
type AccessoryRepository struct {
	conn *Connection
}

// NewAccessoryRepository creates a new AccessoryRepository.
func NewAccessoryRepository(conn *Connection) *AccessoryRepository {
	return &AccessoryRepository{conn: conn}
}

var _ companion.AccessoryRepository = (*AccessoryRepository)(nil)

const accessoryColumns = `a.id, a.name, a.description, a.slot, a.level_required, a.stats_boost`

// Catalog returns every accessory ordered by requirement.
func (r *AccessoryRepository) Catalog(ctx context.Context) (companion.Catalog, error) {
	query := `SELECT ` + accessoryColumns + ` FROM accessories a ORDER BY a.level_required, a.id`
	return r.queryAccessories(ctx, query)
}

// Get returns one catalog entry.
func (r *AccessoryRepository) Get(ctx context.Context, accessoryID string) (companion.Accessory, error) {
	query := `SELECT ` + accessoryColumns + ` FROM accessories a WHERE a.id = $1`

	a, err := scanAccessory(r.conn.QueryRow(ctx, query, accessoryID))
	if err != nil {
		if IsNoRows(err) {
			return companion.Accessory{}, shared.ErrAccessoryNotFound
		}
		return companion.Accessory{}, fmt.Errorf("failed to get accessory: %w", err)
	}
	return a, nil
}

// Loadout returns the accessories a companion is wearing.
func (r *AccessoryRepository) Loadout(ctx context.Context, petID string) (companion.Loadout, error) {
	query := `
		SELECT ` + accessoryColumns + `
		FROM pet_accessories pa
		JOIN accessories a ON a.id = pa.accessory_id
		WHERE pa.pet_id = $1
	`
	list, err := r.queryAccessories(ctx, query, petID)
	if err != nil {
		return nil, err
	}

	loadout := make(companion.Loadout, len(list))
	for _, a := range list {
		loadout[a.Slot] = a
	}
	return loadout, nil
}

// Equip stores the accessory in its slot. The (pet_id, slot) unique
// constraint settles concurrent equips; equipping what is already worn is a no-op.
func (r *AccessoryRepository) Equip(ctx context.Context, petID string, a companion.Accessory) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO pet_accessories (pet_id, accessory_id, slot) VALUES ($1, $2, $3)
		 ON CONFLICT (pet_id, accessory_id) DO NOTHING`,
		petID, a.ID, string(a.Slot),
	)
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return shared.ErrSlotOccupied
	case IsForeignKeyViolation(err):
		return shared.ErrCompanionNotFound
	default:
		return fmt.Errorf("failed to equip accessory: %w", err)
	}
}

// Unequip removes the accessory.
func (r *AccessoryRepository) Unequip(ctx context.Context, petID, accessoryID string) error {
	tag, err := r.conn.Exec(ctx,
		`DELETE FROM pet_accessories WHERE pet_id = $1 AND accessory_id = $2`,
		petID, accessoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to unequip accessory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotEquipped
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *AccessoryRepository) queryAccessories(ctx context.Context, query string, args ...any) ([]companion.Accessory, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accessories: %w", err)
	}
	defer rows.Close()

	var list []companion.Accessory
	for rows.Next() {
		a, err := scanAccessory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accessory: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func scanAccessory(row pgx.Row) (companion.Accessory, error) {
	var (
		a         companion.Accessory
		slot      string
		level     int
		boostJSON []byte
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &slot, &level, &boostJSON); err != nil {
		return companion.Accessory{}, err
	}
	boost, err := decodeBoost(boostJSON)
	if err != nil {
		return companion.Accessory{}, fmt.Errorf("accessory %s: %w", a.ID, err)
	}
	a.Slot = companion.Slot(slot)
	a.LevelRequired = companion.Level(level)
	a.StatsBoost = boost
	return a, nil
}

// decodeBoost reads the stats_boost column, ignoring vitals the model does not know.
func decodeBoost(raw []byte) (companion.StatsBoost, error) {
	boost := companion.StatsBoost{}
	if len(raw) == 0 {
		return boost, nil
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode stats_boost: %w", err)
	}
	for k, v := range m {
		switch vital := companion.Vital(k); vital {
		case companion.VitalHappiness, companion.VitalEnergy:
			boost[vital] = v
		}
	}
	return boost, nil
}
