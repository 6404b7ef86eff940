package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

// Backend is the companion API the engine talks to.
type Backend interface {
	// GetPet returns shared.ErrCompanionNotFound when the owner has none yet.
	GetPet(ctx context.Context) (*companion.Pet, error)
	CreatePet(ctx context.Context, name string, species companion.Species) (*companion.Pet, error)
	RenamePet(ctx context.Context, name string) (*companion.Pet, error)
	DeletePet(ctx context.Context) error
	SyncLevel(ctx context.Context) (LevelReport, error)
	ListAccessories(ctx context.Context) (AccessoryListing, error)
	SetAccessory(ctx context.Context, accessoryID string, equip bool) (EquipResult, error)
	ListEquipped(ctx context.Context) (EquippedListing, error)
}

// Snapshot is an immutable view of the engine taken inside one critical section.
type Snapshot struct {
	Mounted bool
	Pet     companion.Pet
	State   State
	Lock    *InteractionLock
	Present bool

	// Boosted is base vitals plus equipped boosts, for display only.
	Boosted  companion.Vitals
	Equipped []companion.Accessory
	Catalog  []CatalogEntry

	SyncPending        bool
	PendingAccessories []string
	SyncErr            error
	LastErr            error

	// Events are the notifications produced by the change that led to this snapshot.
	Events []shared.Event
	At     time.Time
}

// Options configures an Engine.
type Options struct {
	Config    Config
	Clock     timeutil.Clock
	Logger    *logger.Logger
	Publisher shared.EventPublisher
	Input     InputSource
}

// Engine owns one companion for the lifetime of a view.
type Engine struct {
	cfg       Config
	backend   Backend
	clock     timeutil.Clock
	log       *logger.Logger
	publisher shared.EventPublisher
	input     InputSource

	interactions InteractionHandler
	decayPolicy  DecayScheduler
	progression  ProgressionSynchronizer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	mounted bool
	gen     uint64

	store       *StatStore
	accessories *AccessoryManager
	lock        *InteractionLock
	lockSeq     uint64
	lockTimer   timeutil.Timer
	present     bool
	state       State

	decay    *recurring
	sync     *recurring
	detector *AmbientDetector

	syncPending bool
	syncErr     error
	lastErr     error
	pending     []shared.Event

	listeners      map[int]func(Snapshot)
	nextListenerID int
}

// New creates an unmounted engine.
func New(backend Backend, opts Options) *Engine {
	cfg := opts.Config.withDefaults()
	if opts.Clock == nil {
		opts.Clock = timeutil.System()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:          cfg,
		backend:      backend,
		clock:        opts.Clock,
		log:          opts.Logger.With(logger.Component("engine")),
		publisher:    opts.Publisher,
		input:        opts.Input,
		interactions: NewInteractionHandler(cfg),
		decayPolicy:  NewDecayScheduler(cfg),
		ctx:          ctx,
		cancel:       cancel,
		accessories:  NewAccessoryManager(),
		state:        StateIdle,
		listeners:    make(map[int]func(Snapshot)),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVATION
// ══════════════════════════════════════════════════════════════════════════════

// Subscribe registers fn for every snapshot. fn runs outside the engine lock.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextListenerID++
	id := e.nextListenerID
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Snapshot returns the current view without consuming pending notifications.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now(), nil)
}

// update is a committed change waiting to be delivered outside the lock.
type update struct {
	snap      Snapshot
	listeners []func(Snapshot)
}

// commitLocked re-derives the display state, drains pending notifications and
// captures a snapshot. Requires e.mu.
func (e *Engine) commitLocked(now time.Time) update {
	if e.mounted {
		next := Derive(Inputs{
			Vitals:          e.store.Vitals(),
			Lock:            e.lock,
			Present:         e.present,
			Now:             now,
			CryingThreshold: e.cfg.CryingThreshold,
		})
		if next != e.state {
			e.pending = append(e.pending, shared.NewStateChangedEvent(e.store.Pet().ID, string(e.state), string(next), now))
			e.state = next
		}
	}

	events := e.pending
	e.pending = nil

	listeners := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	return update{snap: e.snapshotLocked(now, events), listeners: listeners}
}

func (e *Engine) snapshotLocked(now time.Time, events []shared.Event) Snapshot {
	snap := Snapshot{
		Mounted:            e.mounted,
		State:              e.state,
		Lock:               e.lock.clone(),
		Present:            e.present,
		SyncPending:        e.syncPending,
		PendingAccessories: e.accessories.Pending(),
		SyncErr:            e.syncErr,
		LastErr:            e.lastErr,
		Events:             events,
		At:                 now,
	}
	if e.store != nil {
		snap.Pet = e.store.Pet()
		snap.Boosted = companion.Boosted(snap.Pet.Vitals, e.accessories.Loadout())
		snap.Equipped = e.accessories.Loadout().List()
		snap.Catalog = e.accessories.Entries(snap.Pet.Level)
	}
	return snap
}

func (e *Engine) deliver(u update) {
	if e.publisher != nil {
		for _, ev := range u.snap.Events {
			if err := e.publisher.Publish(ev); err != nil {
				e.log.Warn("failed to publish event", logger.String("event_type", string(ev.EventType())), logger.Err(err))
			}
		}
	}
	for _, fn := range u.listeners {
		fn(u.snap)
	}
}

// liveLocked reports whether work started under gen may still commit. Requires e.mu.
func (e *Engine) liveLocked(gen uint64) bool {
	return !e.closed && e.mounted && e.gen == gen
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Mount loads the owner's companion and starts the timers. An owner without a
// companion gets shared.ErrCompanionNotFound, which is a normal state that asks
// for Adopt.
func (e *Engine) Mount(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return shared.ErrDisposed
	}
	if e.mounted {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	e.mu.Unlock()

	pet, err := e.backend.GetPet(ctx)
	if err != nil {
		if !shared.IsNotFound(err) {
			e.recordError(err)
		}
		return err
	}

	return e.attach(ctx, gen, pet, nil)
}

// Adopt creates the owner's companion and mounts it.
func (e *Engine) Adopt(ctx context.Context, name string, species companion.Species) error {
	name, err := companion.ValidateName(name)
	if err != nil {
		return err
	}
	if !species.IsValid() {
		return shared.ErrInvalidSpecies
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return shared.ErrDisposed
	}
	if e.mounted {
		e.mu.Unlock()
		return shared.ErrCompanionAlreadyExists
	}
	gen := e.gen
	e.mu.Unlock()

	pet, err := e.backend.CreatePet(ctx, name, species)
	if err != nil {
		e.recordError(err)
		return err
	}

	created := shared.NewCompanionCreatedEvent(pet.ID, pet.OwnerID, pet.Name, string(pet.Species), e.clock.Now())
	return e.attach(ctx, gen, pet, []shared.Event{created})
}

func (e *Engine) attach(ctx context.Context, gen uint64, pet *companion.Pet, events []shared.Event) error {
	e.mu.Lock()
	if e.closed || e.mounted || e.gen != gen {
		e.mu.Unlock()
		return shared.ErrDisposed
	}

	now := e.clock.Now()
	e.store = NewStatStore(*pet)
	e.mounted = true
	e.lock = nil
	e.syncErr = nil
	e.lastErr = nil
	e.pending = append(e.pending, events...)

	e.decay = startRecurring(e.clock, e.cfg.DecayInterval, func() { e.decayTick(gen) })
	e.sync = startRecurring(e.clock, e.cfg.SyncInterval, func() { e.syncTick(gen) })

	detector := NewAmbientDetector(e.clock, e.cfg.IdleAfter, func(present bool) { e.setPresent(gen, present) })
	e.detector = detector

	u := e.commitLocked(now)
	e.mu.Unlock()

	detector.Attach(e.input)
	e.log.Info("companion mounted", logger.PetID(pet.ID), logger.OwnerID(pet.OwnerID), logger.PetLevel(int(pet.Level)))
	e.deliver(u)

	if err := e.RefreshAccessories(ctx); err != nil {
		e.log.Warn("accessory catalog unavailable", logger.Err(err))
	}
	if _, err := e.Sync(ctx); err != nil {
		e.log.Warn("initial level sync failed", logger.Err(err))
	}
	return nil
}

// detachLocked stops every timer of the current mount and invalidates in-flight
// work. Returns the detector, which must be closed outside the lock.
func (e *Engine) detachLocked() *AmbientDetector {
	e.decay.Stop()
	e.sync.Stop()
	e.decay, e.sync = nil, nil
	if e.lockTimer != nil {
		e.lockTimer.Stop()
		e.lockTimer = nil
	}

	detector := e.detector
	e.detector = nil

	e.gen++
	e.mounted = false
	e.store = nil
	e.lock = nil
	e.present = false
	e.state = StateIdle
	e.syncPending = false
	e.syncErr = nil
	e.accessories.Reset()
	return detector
}

// Close tears the engine down. No timer fires and no request commits afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var detector *AmbientDetector
	if e.mounted {
		detector = e.detachLocked()
	}
	e.closed = true
	e.listeners = make(map[int]func(Snapshot))
	e.mu.Unlock()

	e.cancel()
	if detector != nil {
		detector.Close()
	}
}

// Remove deletes the companion on the backend and discards all local state.
func (e *Engine) Remove(ctx context.Context) error {
	e.mu.Lock()
	if !e.mounted {
		e.mu.Unlock()
		return shared.ErrCompanionNotFound
	}
	gen := e.gen
	e.mu.Unlock()

	if err := e.backend.DeletePet(ctx); err != nil {
		e.recordError(err)
		return err
	}

	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return shared.ErrDisposed
	}
	pet := e.store.Pet()
	detector := e.detachLocked()
	e.pending = append(e.pending, shared.NewCompanionRemovedEvent(pet.ID, pet.OwnerID, e.clock.Now()))
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()

	detector.Close()
	e.log.Info("companion removed", logger.PetID(pet.ID))
	e.deliver(u)
	return nil
}

// Rename changes the companion's name on the backend.
func (e *Engine) Rename(ctx context.Context, name string) error {
	name, err := companion.ValidateName(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !e.mounted {
		e.mu.Unlock()
		return shared.ErrCompanionNotFound
	}
	gen := e.gen
	e.mu.Unlock()

	pet, err := e.backend.RenamePet(ctx, name)
	if err != nil {
		e.recordError(err)
		return err
	}

	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return shared.ErrDisposed
	}
	now := e.clock.Now()
	old := e.store.Pet().Name
	if err := e.store.rename(pet.Name, now); err != nil {
		e.mu.Unlock()
		return err
	}
	e.lastErr = nil
	e.pending = append(e.pending, shared.NewCompanionRenamedEvent(pet.ID, old, pet.Name, now))
	u := e.commitLocked(now)
	e.mu.Unlock()

	e.deliver(u)
	return nil
}

func (e *Engine) recordError(err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.lastErr = err
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()
	e.deliver(u)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Feed attempts a feed. Returns false when the precondition fails or an
// interaction is already in progress; nothing changes in that case.
func (e *Engine) Feed() bool {
	return e.interact(ActionFeed)
}

// Play attempts a play. Same rejection rules as Feed.
func (e *Engine) Play() bool {
	return e.interact(ActionPlay)
}

func (e *Engine) interact(action Action) bool {
	e.mu.Lock()
	if !e.mounted || e.closed {
		e.mu.Unlock()
		return false
	}

	now := e.clock.Now()
	lock, ok := e.interactions.Attempt(action, e.store, e.lock, now)
	if !ok {
		e.mu.Unlock()
		return false
	}

	e.lock = lock
	e.lockSeq++
	seq, gen := e.lockSeq, e.gen
	if e.lockTimer != nil {
		e.lockTimer.Stop()
	}
	e.lockTimer = e.clock.AfterFunc(lock.ExpiresAt.Sub(now), func() { e.expireLock(gen, seq) })

	u := e.commitLocked(now)
	e.mu.Unlock()

	e.log.Debug("interaction applied", logger.String("action", string(action)), logger.State(string(u.snap.State)))
	e.deliver(u)
	return true
}

func (e *Engine) expireLock(gen, seq uint64) {
	e.mu.Lock()
	if !e.liveLocked(gen) || seq != e.lockSeq {
		e.mu.Unlock()
		return
	}
	e.lock = nil
	e.lockTimer = nil
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()

	e.deliver(u)
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMERS
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) decayTick(gen uint64) {
	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	if !e.decayPolicy.Tick(e.store, e.lock, now) {
		e.mu.Unlock()
		return
	}
	u := e.commitLocked(now)
	e.mu.Unlock()

	e.deliver(u)
}

func (e *Engine) syncTick(gen uint64) {
	e.mu.Lock()
	live := e.liveLocked(gen)
	e.mu.Unlock()
	if !live {
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.RequestTimeout)
	defer cancel()

	if _, err := e.Sync(ctx); err != nil && !shared.IsPrecondition(err) {
		e.log.Warn("scheduled level sync failed", logger.Err(err))
	}
}

func (e *Engine) setPresent(gen uint64, present bool) {
	e.mu.Lock()
	if !e.liveLocked(gen) || e.present == present {
		e.mu.Unlock()
		return
	}
	e.present = present
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()

	e.deliver(u)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// Sync reconciles the level with the progression authority. Failures leave the
// level untouched and are kept in the snapshot until the next attempt.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	e.mu.Lock()
	if !e.mounted || e.closed {
		e.mu.Unlock()
		return SyncResult{}, shared.ErrCompanionNotFound
	}
	if e.syncPending {
		e.mu.Unlock()
		return SyncResult{}, shared.NewDomainError("progression", "Sync", shared.ErrConflict, "sync already in progress")
	}
	gen := e.gen
	e.syncPending = true
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()
	e.deliver(u)

	report, err := e.backend.SyncLevel(ctx)

	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return SyncResult{}, shared.ErrDisposed
	}
	e.syncPending = false
	now := e.clock.Now()

	if err != nil {
		e.syncErr = err
		u := e.commitLocked(now)
		e.mu.Unlock()
		e.deliver(u)
		return SyncResult{}, fmt.Errorf("level sync: %w", err)
	}

	result, events := e.progression.Reconcile(e.store, e.accessories.Catalog(), report, now)
	e.syncErr = nil
	e.pending = append(e.pending, events...)
	u = e.commitLocked(now)
	e.mu.Unlock()

	if result.LevelUps > 0 {
		e.log.Info("companion leveled up",
			logger.PetID(u.snap.Pet.ID),
			logger.PetLevel(int(result.NewLevel)),
			logger.Int("level_ups", result.LevelUps),
			logger.Int("unlocked", len(result.Unlocked)),
		)
	}
	e.deliver(u)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORIES
// ══════════════════════════════════════════════════════════════════════════════

// RefreshAccessories reloads the catalog and the equipped set.
func (e *Engine) RefreshAccessories(ctx context.Context) error {
	e.mu.Lock()
	if !e.mounted || e.closed {
		e.mu.Unlock()
		return shared.ErrCompanionNotFound
	}
	gen := e.gen
	e.mu.Unlock()

	listing, err := e.backend.ListAccessories(ctx)
	if err != nil {
		e.recordError(err)
		return err
	}
	equipped, err := e.backend.ListEquipped(ctx)
	if err != nil {
		e.recordError(err)
		return err
	}

	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return shared.ErrDisposed
	}
	e.accessories.SetCatalog(listing.Entries)
	e.accessories.SetEquipped(equipped.Accessories)
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()

	e.deliver(u)
	return nil
}

// Equip puts an accessory on. The level requirement is checked against the
// synchronized level at call time; a failed request rolls the change back.
func (e *Engine) Equip(ctx context.Context, accessoryID string) error {
	return e.setAccessory(ctx, accessoryID, true)
}

// Unequip takes an accessory off.
func (e *Engine) Unequip(ctx context.Context, accessoryID string) error {
	return e.setAccessory(ctx, accessoryID, false)
}

func (e *Engine) setAccessory(ctx context.Context, accessoryID string, equip bool) error {
	e.mu.Lock()
	if !e.mounted || e.closed {
		e.mu.Unlock()
		return shared.ErrCompanionNotFound
	}

	acc, ok := e.accessories.Find(accessoryID)
	if !ok {
		e.mu.Unlock()
		return shared.ErrAccessoryNotFound
	}

	if equip {
		send, err := e.accessories.BeginEquip(acc, e.store.Level())
		if err != nil || !send {
			e.mu.Unlock()
			return err
		}
	} else {
		removed, err := e.accessories.BeginUnequip(accessoryID)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		acc = removed
	}

	gen := e.gen
	u := e.commitLocked(e.clock.Now())
	e.mu.Unlock()
	e.deliver(u)

	result, err := e.backend.SetAccessory(ctx, accessoryID, equip)

	e.mu.Lock()
	if !e.liveLocked(gen) {
		e.mu.Unlock()
		return shared.ErrDisposed
	}

	now := e.clock.Now()
	if err == nil && result.Equipped != equip {
		err = shared.NewDomainError("accessory", "Set", shared.ErrConflict, "backend did not apply the change")
	}
	e.accessories.Finish(acc, equip, err != nil)
	if err != nil {
		e.lastErr = err
	} else {
		e.lastErr = nil
		e.pending = append(e.pending, shared.NewAccessoryChangedEvent(e.store.Pet().ID, acc.ID, string(acc.Slot), equip, now))
	}
	u = e.commitLocked(now)
	e.mu.Unlock()

	e.deliver(u)
	if err != nil {
		e.log.Warn("accessory change rolled back", logger.AccessoryID(accessoryID), logger.Err(err))
		return err
	}
	return nil
}
