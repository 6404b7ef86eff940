// Package tui is the terminal front end of the companion. It renders engine
// snapshots and turns keys into engine calls.
//
// Engine calls never run on the Update goroutine: the engine delivers
// snapshots through Program.Send, which would block the event loop that is
// waiting on it. Every call is issued from a tea.Cmd instead.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/engine"
)

// Companion is the part of *engine.Engine the UI drives.
type Companion interface {
	Mount(ctx context.Context) error
	Adopt(ctx context.Context, name string, species companion.Species) error
	Feed() bool
	Play() bool
	Sync(ctx context.Context) (engine.SyncResult, error)
	RefreshAccessories(ctx context.Context) error
	Equip(ctx context.Context, accessoryID string) error
	Unequip(ctx context.Context, accessoryID string) error
	Rename(ctx context.Context, name string) error
	Remove(ctx context.Context) error
	Snapshot() engine.Snapshot
}

// InputSink receives owner activity for presence detection.
type InputSink interface {
	Emit(kind engine.InputKind)
}

type screen int

const (
	screenLoading screen = iota
	screenAdopt
	screenMain
	screenAccessories
	screenRename
	screenConfirmRemove
)

// menu entries of the main screen, in display order.
var mainMenu = []string{"Feed", "Play", "Sync level", "Accessories", "Rename", "Remove", "Quit"}

const (
	menuFeed = iota
	menuPlay
	menuSync
	menuAccessories
	menuRename
	menuRemove
	menuQuit
)

const messageTTL = 4 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMsg carries an engine snapshot into the program.
type SnapshotMsg struct {
	Snapshot engine.Snapshot
}

type mountedMsg struct{ err error }

// resultMsg reports the outcome of an engine call started by the owner.
type resultMsg struct {
	op   string
	note string
	err  error
}

type clockMsg time.Time

// ══════════════════════════════════════════════════════════════════════════════
// MODEL
// ══════════════════════════════════════════════════════════════════════════════

// Options tunes the model.
type Options struct {
	// RequestTimeout bounds every engine call that reaches the backend.
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Model implements tea.Model.
type Model struct {
	ctx     context.Context
	eng     Companion
	input   InputSink
	timeout time.Duration
	now     func() time.Time

	snap   engine.Snapshot
	screen screen

	menu    int
	cursor  int
	text    string
	species int

	busy         string
	message      string
	messageUntil time.Time
	authFailed   bool
	mountErr     error
	quitting     bool
}

// NewModel creates the model. input may be nil.
func NewModel(ctx context.Context, eng Companion, input InputSink, opts Options) Model {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return Model{
		ctx:     ctx,
		eng:     eng,
		input:   input,
		timeout: opts.RequestTimeout,
		now:     opts.Now,
		screen:  screenLoading,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.mount(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m Model) mount() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		return mountedMsg{err: m.eng.Mount(ctx)}
	}
}

// call runs fn against the engine off the event loop.
func (m Model) call(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		note, err := fn(ctx)
		return resultMsg{op: op, note: note, err: err}
	}
}

func (m Model) emit(kind engine.InputKind) tea.Cmd {
	if m.input == nil {
		return nil
	}
	return func() tea.Msg {
		m.input.Emit(kind)
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		next, cmd := m.handleKey(msg)
		return next, tea.Batch(m.emit(engine.InputKey), cmd)

	case tea.MouseMsg:
		return m, m.emit(engine.InputPointer)

	case SnapshotMsg:
		return m.applySnapshot(msg.Snapshot), nil

	case mountedMsg:
		return m.mounted(msg.err), nil

	case resultMsg:
		return m.finished(msg), nil

	case clockMsg:
		if m.message != "" && !m.now().Before(m.messageUntil) {
			m.message = ""
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) mounted(err error) Model {
	m.mountErr = nil
	switch {
	case err == nil:
		m.snap = m.eng.Snapshot()
		m.screen = screenMain
	case shared.IsNotFound(err):
		m.screen = screenAdopt
		m.text = ""
	case shared.IsUnauthorized(err):
		m.authFailed = true
	default:
		m.mountErr = err
	}
	return m
}

func (m Model) applySnapshot(s engine.Snapshot) Model {
	if s.At.Before(m.snap.At) {
		return m
	}
	m.snap = s

	if s.LastErr != nil && shared.IsUnauthorized(s.LastErr) {
		m.authFailed = true
	}
	for _, ev := range s.Events {
		if text := describeEvent(ev, s.Pet.Name); text != "" {
			m = m.say(text)
		}
	}

	switch {
	case s.Mounted && (m.screen == screenLoading || m.screen == screenAdopt):
		m.screen = screenMain
	case !s.Mounted && m.screen != screenLoading && m.screen != screenAdopt:
		m.screen = screenAdopt
		m.text = ""
	}
	if n := len(s.Catalog); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	}
	return m
}

func (m Model) finished(r resultMsg) Model {
	if r.op == m.busy {
		m.busy = ""
	}
	if r.err != nil {
		if shared.IsUnauthorized(r.err) {
			m.authFailed = true
			return m
		}
		return m.say(errorText(r.op, r.err))
	}
	if r.note != "" {
		m = m.say(r.note)
	}
	return m
}

func (m Model) say(text string) Model {
	m.message = text
	m.messageUntil = m.now().Add(messageTTL)
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Keys
// ─────────────────────────────────────────────────────────────────────────────

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.authFailed {
		if msg.String() == "q" || msg.Type == tea.KeyEsc {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.screen {
	case screenLoading:
		return m.loadingKey(msg)
	case screenAdopt:
		return m.adoptKey(msg)
	case screenAccessories:
		return m.accessoriesKey(msg)
	case screenRename:
		return m.renameKey(msg)
	case screenConfirmRemove:
		return m.confirmRemoveKey(msg)
	default:
		return m.mainKey(msg)
	}
}

func (m Model) loadingKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "r":
		if m.mountErr != nil {
			m.mountErr = nil
			return m, m.mount()
		}
	}
	return m, nil
}

func (m Model) mainKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.menu > 0 {
			m.menu--
		}
	case "down", "j":
		if m.menu < len(mainMenu)-1 {
			m.menu++
		}
	case "f":
		return m.choose(menuFeed)
	case "p":
		return m.choose(menuPlay)
	case "s":
		return m.choose(menuSync)
	case "a":
		return m.choose(menuAccessories)
	case "enter", " ":
		return m.choose(m.menu)
	}
	return m, nil
}

func (m Model) choose(item int) (Model, tea.Cmd) {
	eng := m.eng
	switch item {
	case menuFeed:
		return m, m.call("feed", func(context.Context) (string, error) {
			if !eng.Feed() {
				return "Not hungry right now.", nil
			}
			return "", nil
		})
	case menuPlay:
		return m, m.call("play", func(context.Context) (string, error) {
			if !eng.Play() {
				return "Too tired to play.", nil
			}
			return "", nil
		})
	case menuSync:
		if m.busy != "" {
			return m, nil
		}
		m.busy = "sync"
		return m, m.call("sync", func(ctx context.Context) (string, error) {
			res, err := eng.Sync(ctx)
			if err != nil {
				return "", err
			}
			if res.LevelUps == 0 {
				return "Level is up to date.", nil
			}
			return "", nil
		})
	case menuAccessories:
		m.screen = screenAccessories
		m.cursor = 0
		return m, m.call("refresh", func(ctx context.Context) (string, error) {
			return "", eng.RefreshAccessories(ctx)
		})
	case menuRename:
		m.screen = screenRename
		m.text = m.snap.Pet.Name
	case menuRemove:
		m.screen = screenConfirmRemove
	case menuQuit:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) accessoriesKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.screen = screenMain
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Catalog)-1 {
			m.cursor++
		}
	case "r":
		eng := m.eng
		return m, m.call("refresh", func(ctx context.Context) (string, error) {
			return "", eng.RefreshAccessories(ctx)
		})
	case "enter", " ":
		if m.cursor >= len(m.snap.Catalog) {
			return m, nil
		}
		entry := m.snap.Catalog[m.cursor]
		if m.worn(entry.ID) {
			return m, m.unequip(entry.Accessory)
		}
		if !entry.Eligible {
			return m.say(fmt.Sprintf("%s unlocks at level %d.", entry.Name, entry.LevelRequired)), nil
		}
		return m, m.equip(entry.Accessory)
	}
	return m, nil
}

func (m Model) equip(a companion.Accessory) tea.Cmd {
	eng := m.eng
	return m.call("equip", func(ctx context.Context) (string, error) {
		if err := eng.Equip(ctx, a.ID); err != nil {
			return "", err
		}
		return "Wearing " + a.Name + ".", nil
	})
}

func (m Model) unequip(a companion.Accessory) tea.Cmd {
	eng := m.eng
	return m.call("unequip", func(ctx context.Context) (string, error) {
		if err := eng.Unequip(ctx, a.ID); err != nil {
			return "", err
		}
		return "Took off " + a.Name + ".", nil
	})
}

func (m Model) worn(id string) bool {
	for _, a := range m.snap.Equipped {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (m Model) renameKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.screen = screenMain
		return m, nil
	case tea.KeyEnter:
		name := m.text
		m.screen = screenMain
		eng := m.eng
		return m, m.call("rename", func(ctx context.Context) (string, error) {
			return "", eng.Rename(ctx, name)
		})
	}
	m.text = editText(m.text, msg)
	return m, nil
}

func (m Model) adoptKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyLeft:
		m.species = (m.species + len(companion.AllSpecies) - 1) % len(companion.AllSpecies)
		return m, nil
	case tea.KeyRight, tea.KeyTab:
		m.species = (m.species + 1) % len(companion.AllSpecies)
		return m, nil
	case tea.KeyEnter:
		if m.busy != "" {
			return m, nil
		}
		name, err := companion.ValidateName(m.text)
		if err != nil {
			return m.say(errorText("adopt", err)), nil
		}
		m.busy = "adopt"
		species := companion.AllSpecies[m.species]
		eng := m.eng
		return m, m.call("adopt", func(ctx context.Context) (string, error) {
			if err := eng.Adopt(ctx, name, species); err != nil {
				return "", err
			}
			return fmt.Sprintf("Welcome, %s!", name), nil
		})
	}
	m.text = editText(m.text, msg)
	return m, nil
}

func (m Model) confirmRemoveKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.screen = screenMain
		eng := m.eng
		name := m.snap.Pet.Name
		return m, m.call("remove", func(ctx context.Context) (string, error) {
			if err := eng.Remove(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("Said goodbye to %s.", name), nil
		})
	default:
		m.screen = screenMain
	}
	return m, nil
}

// editText applies a key to a single-line input.
func editText(text string, msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyBackspace:
		r := []rune(text)
		if len(r) > 0 {
			return string(r[:len(r)-1])
		}
		return text
	case tea.KeySpace:
		return text + " "
	case tea.KeyRunes:
		if len([]rune(text))+len(msg.Runes) > 50 {
			return text
		}
		return text + string(msg.Runes)
	}
	return text
}

// ─────────────────────────────────────────────────────────────────────────────
// Text
// ─────────────────────────────────────────────────────────────────────────────

func describeEvent(ev shared.Event, name string) string {
	switch e := ev.(type) {
	case shared.LevelUpEvent:
		return fmt.Sprintf("%s reached level %d!", name, e.NewLevel)
	case shared.AccessoryUnlockedEvent:
		return fmt.Sprintf("Unlocked %s.", e.AccessoryName)
	}
	return ""
}

func errorText(op string, err error) string {
	var de *shared.DomainError
	msg := err.Error()
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	switch {
	case errors.Is(err, shared.ErrLevelRequirement):
		return "Not unlocked yet: " + msg
	case errors.Is(err, shared.ErrSlotOccupied):
		return "Take off the other accessory in that slot first."
	case shared.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s failed, the server is unavailable. Try again later.", op)
	}
	return fmt.Sprintf("%s failed: %s", op, msg)
}
