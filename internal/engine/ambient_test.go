package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

func TestAmbientDetector_Debounce(t *testing.T) {
	clock := timeutil.NewFake(testStart)
	hub := NewInputHub()

	var changes []bool
	d := NewAmbientDetector(clock, 10*time.Second, func(present bool) { changes = append(changes, present) })
	d.Attach(hub)
	require.Equal(t, 1, hub.Listeners())

	hub.Emit(InputKey)
	assert.True(t, d.Present())

	clock.Advance(8 * time.Second)
	hub.Emit(InputPointer)
	clock.Advance(8 * time.Second)
	assert.True(t, d.Present(), "each signal restarts the silence window")

	clock.Advance(2 * time.Second)
	assert.False(t, d.Present())
	assert.Equal(t, []bool{true, false}, changes)

	d.Close()
	assert.Equal(t, 0, hub.Listeners())
	assert.Equal(t, 0, clock.Pending())

	hub.Emit(InputTap)
	assert.False(t, d.Present())
	assert.Len(t, changes, 2)
}

func TestRecurring_StopsCleanly(t *testing.T) {
	clock := timeutil.NewFake(testStart)
	runs := 0
	r := startRecurring(clock, time.Minute, func() { runs++ })

	clock.Advance(3 * time.Minute)
	assert.Equal(t, 3, runs)

	r.Stop()
	clock.Advance(10 * time.Minute)
	assert.Equal(t, 3, runs)
	assert.Equal(t, 0, clock.Pending())
}
