package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/application/command"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/memory"
)

type scriptedSyncer struct {
	mu    sync.Mutex
	seen  []string
	errs  map[string]error
	level map[string]int
}

func (s *scriptedSyncer) Handle(_ context.Context, cmd command.SyncLevelCommand) (*command.SyncLevelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, cmd.OwnerID)
	if err := s.errs[cmd.OwnerID]; err != nil {
		return nil, err
	}
	return &command.SyncLevelResult{LevelUps: s.level[cmd.OwnerID]}, nil
}

type capture struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *capture) Publish(e shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func seedPets(t *testing.T, n int) *memory.PetStore {
	t.Helper()
	store := memory.NewPetStore()
	for i := 0; i < n; i++ {
		pet, err := companion.NewPet(companion.NewPetParams{
			ID:      fmt.Sprintf("pet-%d", i),
			OwnerID: fmt.Sprintf("owner-%d", i),
			Name:    "Byte",
			Species: companion.SpeciesCat,
		})
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), pet))
	}
	return store
}

func TestSyncPetLevelsJob_VisitsEveryOwnerAcrossPages(t *testing.T) {
	store := seedPets(t, 7)
	syncer := &scriptedSyncer{
		errs: map[string]error{
			"owner-1": shared.ErrLearnerNotFound,
			"owner-2": command.ErrSyncInProgress,
		},
		level: map[string]int{"owner-3": 2, "owner-6": 1},
	}
	events := &capture{}

	job := NewSyncPetLevelsJob(store, syncer, events, nil, SyncPetLevelsConfig{BatchSize: 3, Concurrency: 2})
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t,
		[]string{"owner-0", "owner-1", "owner-2", "owner-3", "owner-4", "owner-5", "owner-6"},
		syncer.seen)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 7, stats.Processed)
	assert.Equal(t, 2, stats.LeveledUp)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)

	require.Len(t, events.events, 1)
	done, ok := events.events[0].(shared.SyncCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, 7, done.Processed)
	assert.Equal(t, 1, done.Failed)
}

func TestSyncPetLevelsJob_CancelledContext(t *testing.T) {
	store := seedPets(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := NewSyncPetLevelsJob(store, &scriptedSyncer{}, nil, nil, DefaultSyncPetLevelsConfig())
	err := job.Run(ctx)
	// The memory store ignores ctx; cancellation surfaces at dispatch.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.NotNil(t, job.LastStats())
}
