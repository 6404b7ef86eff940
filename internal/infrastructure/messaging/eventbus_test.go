package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	at := time.Unix(100, 0)
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("p1", 1, 2, at)))
	require.NoError(t, bus.Publish(shared.NewCompanionRenamedEvent("p1", "a", "b", at)))

	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, typed)
	assert.Equal(t, []shared.EventType{shared.EventLevelUp, shared.EventCompanionRenamed}, all)
	assert.Equal(t, MetricsSnapshot{Published: 2, Handled: 1, Failed: 2}, bus.Metrics())
}

func TestInMemoryEventBus_AsyncRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewCompanionRemovedEvent("p1", "alice", time.Now())))
	require.NoError(t, bus.Close())

	assert.Equal(t, 1, delivered)
	assert.Equal(t, int64(1), bus.Metrics().Failed)
	assert.ErrorIs(t, bus.Publish(shared.NewCompanionRemovedEvent("p1", "alice", time.Now())), ErrEventBusClosed)
}

func TestInMemoryEventBus_CloseDrainsAcceptedEvents(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 1})

	var mu sync.Mutex
	var seen []int
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, e.(shared.LevelUpEvent).NewLevel)
		mu.Unlock()
		return nil
	}))

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, bus.Publish(shared.NewLevelUpEvent("p1", i+1, i+2, time.Now())))
	}
	require.NoError(t, bus.Close())

	assert.Len(t, seen, n)
	assert.Equal(t, MetricsSnapshot{Published: n, Handled: n}, bus.Metrics())
}

func TestEnvelope_RoundTripKeepsTypeAndPayload(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := encodeEnvelope("node-a", shared.NewAccessoryUnlockedEvent("p1", "crown", "Crown", 10, at))
	require.NoError(t, err)

	event, instance, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "node-a", instance)
	assert.Equal(t, shared.EventAccessoryUnlocked, event.EventType())
	assert.Equal(t, "p1", event.AggregateID())
	assert.True(t, event.OccurredAt().Equal(at))
	assert.Equal(t, "crown", event.Payload()["accessory_id"])

	_, _, err = decodeEnvelope([]byte(`{"instance":"x"}`))
	assert.Error(t, err)
}
