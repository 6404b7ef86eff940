package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

func TestDecodeBoost(t *testing.T) {
	boost, err := decodeBoost([]byte(`{"happiness": 5, "energy": 10, "charisma": 3}`))
	require.NoError(t, err)
	assert.Equal(t, companion.StatsBoost{companion.VitalHappiness: 5, companion.VitalEnergy: 10}, boost)

	boost, err = decodeBoost(nil)
	require.NoError(t, err)
	assert.Empty(t, boost)

	_, err = decodeBoost([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))

	now := time.Now()
	require.NotNil(t, nullTime(now))
	assert.True(t, nullTime(now).Equal(now))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsNoRows(pgx.ErrNoRows))
}

func TestMigrations_AreOrderedAndReversible(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	assert.Contains(t, migs[2].UpSQL, "UNIQUE (pet_id, slot)")
}
