package engine

import (
	"sync"
	"time"

	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

// InputKind is a coarse class of owner input.
type InputKind string

const (
	InputPointer InputKind = "pointer"
	InputKey     InputKind = "key"
	InputTap     InputKind = "tap"
)

// InputSource delivers owner input signals. Subscribe returns the function
// that removes the listener again.
type InputSource interface {
	Subscribe(fn func(InputKind)) (unsubscribe func())
}

// ─────────────────────────────────────────────────────────────────────────────
// InputHub
// ─────────────────────────────────────────────────────────────────────────────

// InputHub is an InputSource fed by the host UI.
type InputHub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(InputKind)
}

// NewInputHub creates an empty hub.
func NewInputHub() *InputHub {
	return &InputHub{listeners: make(map[int]func(InputKind))}
}

// Subscribe implements InputSource.
func (h *InputHub) Subscribe(fn func(InputKind)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers a signal to every listener.
func (h *InputHub) Emit(kind InputKind) {
	h.mu.Lock()
	fns := make([]func(InputKind), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// Listeners returns the number of registered listeners.
func (h *InputHub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// ─────────────────────────────────────────────────────────────────────────────
// AmbientDetector
// ─────────────────────────────────────────────────────────────────────────────

// AmbientDetector classifies the owner as present or idle. Any signal marks
// the owner present; IdleAfter of silence marks them idle.
type AmbientDetector struct {
	clock     timeutil.Clock
	idleAfter time.Duration
	onChange  func(present bool)

	mu          sync.Mutex
	present     bool
	timer       timeutil.Timer
	seq         uint64
	unsubscribe []func()
	closed      bool
}

// NewAmbientDetector creates a detector. onChange runs outside the detector's
// lock whenever presence flips.
func NewAmbientDetector(clock timeutil.Clock, idleAfter time.Duration, onChange func(present bool)) *AmbientDetector {
	return &AmbientDetector{clock: clock, idleAfter: idleAfter, onChange: onChange}
}

// Attach starts listening to a source until Close.
func (d *AmbientDetector) Attach(src InputSource) {
	if src == nil {
		return
	}
	unsubscribe := src.Subscribe(d.Signal)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		unsubscribe()
		return
	}
	d.unsubscribe = append(d.unsubscribe, unsubscribe)
	d.mu.Unlock()
}

// Signal records one input event.
func (d *AmbientDetector) Signal(InputKind) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.idleAfter, func() { d.expire(seq) })

	changed := !d.present
	d.present = true
	d.mu.Unlock()

	if changed && d.onChange != nil {
		d.onChange(true)
	}
}

func (d *AmbientDetector) expire(seq uint64) {
	d.mu.Lock()
	if d.closed || seq != d.seq || !d.present {
		d.mu.Unlock()
		return
	}
	d.present = false
	d.timer = nil
	d.mu.Unlock()

	if d.onChange != nil {
		d.onChange(false)
	}
}

// Present reports the current classification.
func (d *AmbientDetector) Present() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present
}

// Close removes every listener and cancels the idle timer. Idempotent.
func (d *AmbientDetector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
}
