package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_pets", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_accessories", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_pet_accessories", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PETS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS pets (
    id UUID PRIMARY KEY,
    owner_id VARCHAR(64) NOT NULL UNIQUE,
    name VARCHAR(50) NOT NULL,
    species VARCHAR(20) NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    happiness INTEGER NOT NULL,
    energy INTEGER NOT NULL,
    last_fed TIMESTAMP WITH TIME ZONE,
    last_played TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_species CHECK (species IN ('cat', 'dog', 'dragon', 'owl', 'fox')),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_happiness CHECK (happiness BETWEEN 0 AND 100),
    CONSTRAINT valid_energy CHECK (energy BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_pets_created_at ON pets(created_at, id);
`

const migration001Down = `
DROP TABLE IF EXISTS pets;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACCESSORY CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS accessories (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    slot VARCHAR(10) NOT NULL,
    level_required INTEGER NOT NULL,
    stats_boost JSONB NOT NULL DEFAULT '{}'::jsonb,

    CONSTRAINT valid_slot CHECK (slot IN ('head', 'neck', 'body', 'held')),
    CONSTRAINT valid_level_required CHECK (level_required >= 1)
);

CREATE INDEX IF NOT EXISTS idx_accessories_level ON accessories(level_required, id);

INSERT INTO accessories (id, name, description, slot, level_required, stats_boost) VALUES
    ('party_hat',       'Party Hat',       'For the first pushed project.',        'head', 2,  '{"happiness": 5}'),
    ('bandana',         'Bandana',         'Keeps the focus on the task.',         'neck', 3,  '{"energy": 5}'),
    ('backpack',        'Backpack',        'Holds snacks for long piscines.',      'body', 4,  '{"energy": 10}'),
    ('scarf',           'Cozy Scarf',      'Warm on late evenings at campus.',     'neck', 5,  '{"happiness": 5, "energy": 5}'),
    ('wizard_hat',      'Wizard Hat',      'Recursion is no longer scary.',        'head', 6,  '{"happiness": 10}'),
    ('coffee_mug',      'Coffee Mug',      'Fuel for the next checkpoint.',        'held', 7,  '{"energy": 15}'),
    ('cape',            'Hero Cape',       'Worn by those who help their peers.',  'body', 8,  '{"happiness": 10, "energy": 5}'),
    ('crown',           'Crown',           'Reached double digits.',               'head', 10, '{"happiness": 20}'),
    ('golden_keyboard', 'Golden Keyboard', 'Every keystroke counts.',              'held', 12, '{"happiness": 15, "energy": 10}')
ON CONFLICT (id) DO NOTHING;
`

const migration002Down = `
DROP TABLE IF EXISTS accessories;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: EQUIPPED ACCESSORIES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS pet_accessories (
    pet_id UUID NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
    accessory_id VARCHAR(64) NOT NULL REFERENCES accessories(id),
    slot VARCHAR(10) NOT NULL,
    equipped_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (pet_id, accessory_id),
    -- At most one accessory per slot per companion
    CONSTRAINT uq_pet_slot UNIQUE (pet_id, slot)
);
`

const migration003Down = `
DROP TABLE IF EXISTS pet_accessories;
`
