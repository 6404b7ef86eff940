package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/engine"
	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

var styles = struct {
	title    lipgloss.Style
	label    lipgloss.Style
	state    lipgloss.Style
	art      lipgloss.Style
	menu     lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	message  lipgloss.Style
	warning  lipgloss.Style
	box      lipgloss.Style
}{
	title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF75B5")).Padding(0, 1),
	label:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF75B5")).Width(11),
	state:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DCFFF")),
	art:      lipgloss.NewStyle().Padding(0, 4),
	menu:     lipgloss.NewStyle().Padding(0, 2),
	selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF75B5")).Bold(true),
	muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
	message:  lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
	warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#FF75B5")).Padding(1, 2),
}

// faces are indexed by display state.
var faces = map[engine.State]string{
	engine.StateIdle:     "( -.- )  zz",
	engine.StateChilling: "( ^.^ )",
	engine.StateEating:   "( ^o^ )  *nom*",
	engine.StatePlaying:  "\\( ^▽^ )/",
	engine.StateDancing:  "♪ ┗( ･o･)┓ ♪",
	engine.StateCrying:   "( T_T )",
	engine.StateDead:     "( x_x )",
}

var speciesIcons = map[companion.Species]string{
	companion.SpeciesCat:    "🐱",
	companion.SpeciesDog:    "🐶",
	companion.SpeciesDragon: "🐲",
	companion.SpeciesOwl:    "🦉",
	companion.SpeciesFox:    "🦊",
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "See you soon!\n"
	}
	if m.authFailed {
		return styles.box.Render(lipgloss.JoinVertical(lipgloss.Left,
			styles.warning.Render("Your session is no longer valid."),
			"",
			"Sign in again, set COMPANION_TOKEN and restart.",
			"",
			styles.muted.Render("q to quit"),
		))
	}

	var body string
	switch m.screen {
	case screenLoading:
		body = m.loadingView()
	case screenAdopt:
		body = m.adoptView()
	case screenAccessories:
		body = m.accessoriesView()
	case screenRename:
		body = m.renameView()
	case screenConfirmRemove:
		body = m.confirmRemoveView()
	default:
		body = m.mainView()
	}

	if m.message != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", styles.message.Render(m.message))
	}
	return body + "\n"
}

func (m Model) loadingView() string {
	if m.mountErr != nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.warning.Render("Could not reach your companion: "+errorText("load", m.mountErr)),
			styles.muted.Render("r to retry • q to quit"),
		)
	}
	return styles.muted.Render("Waking your companion up...")
}

func (m Model) adoptView() string {
	var species []string
	for i, s := range companion.AllSpecies {
		label := fmt.Sprintf("%s %s", speciesIcons[s], s)
		if i == m.species {
			label = styles.selected.Render("[" + label + "]")
		} else {
			label = " " + label + " "
		}
		species = append(species, label)
	}

	status := ""
	if m.busy == "adopt" {
		status = styles.muted.Render("Adopting...")
	}

	return styles.box.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render("Adopt a companion"),
		"",
		"Name: "+m.text+"█",
		"",
		strings.Join(species, " "),
		status,
		"",
		styles.muted.Render("type a name • ←/→ species • enter to adopt • esc to quit"),
	))
}

func (m Model) mainView() string {
	s := m.snap
	now := m.now()

	title := styles.title.Render(fmt.Sprintf("%s %s  ·  level %d", speciesIcons[s.Pet.Species], s.Pet.Name, s.Pet.Level))

	state := string(s.State)
	if s.Lock.Active(now) {
		state = fmt.Sprintf("%s (%ds)", state, int(s.Lock.Remaining(now).Seconds()+0.999))
	}
	presence := "away"
	if s.Present {
		presence = "here"
	}

	sync := "synced"
	switch {
	case s.SyncPending:
		sync = "syncing..."
	case s.SyncErr != nil:
		sync = styles.warning.Render("sync failed, retrying later")
	}

	lines := []string{
		row("State", styles.state.Render(state)),
		row("Happiness", bar(s.Boosted.Happiness)),
		row("Energy", bar(s.Boosted.Energy)),
		row("Last fed", relative(s.Pet.LastFed.IsZero(), func() string { return timeutil.FormatRelative(s.Pet.LastFed, now) })),
		row("Last play", relative(s.Pet.LastPlayed.IsZero(), func() string { return timeutil.FormatRelative(s.Pet.LastPlayed, now) })),
		row("Owner", presence),
		row("Progress", sync),
	}
	if len(s.Equipped) > 0 {
		names := make([]string, 0, len(s.Equipped))
		for _, a := range s.Equipped {
			names = append(names, a.Name)
		}
		lines = append(lines, row("Wearing", strings.Join(names, ", ")))
	}

	var items []string
	for i, item := range mainMenu {
		if i == m.menu {
			items = append(items, styles.selected.Render("> "+item))
			continue
		}
		items = append(items, "  "+item)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		styles.art.Render(faces[s.State]),
		"",
		strings.Join(lines, "\n"),
		"",
		styles.menu.Render(strings.Join(items, "\n")),
		"",
		styles.muted.Render("↑/↓ move • enter select • f feed • p play • s sync • a accessories • q quit"),
	)
}

func (m Model) accessoriesView() string {
	s := m.snap
	if len(s.Catalog) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.title.Render("Accessories"),
			"",
			styles.muted.Render("Loading the catalog..."),
			styles.muted.Render("esc back"),
		)
	}

	pending := make(map[string]bool, len(s.PendingAccessories))
	for _, id := range s.PendingAccessories {
		pending[id] = true
	}

	var lines []string
	for i, entry := range s.Catalog {
		mark := "   "
		switch {
		case pending[entry.ID]:
			mark = " … "
		case m.worn(entry.ID):
			mark = " ✓ "
		case !entry.Eligible:
			mark = " 🔒"
		}

		line := fmt.Sprintf("%s %-16s %-5s lvl %-2d %s", mark, entry.Name, entry.Slot, entry.LevelRequired, boostText(entry.StatsBoost))
		switch {
		case i == m.cursor:
			line = styles.selected.Render(">" + line)
		case !entry.Eligible:
			line = styles.muted.Render(" " + line)
		default:
			line = " " + line
		}
		lines = append(lines, line)
	}

	detail := ""
	if m.cursor < len(s.Catalog) {
		detail = styles.muted.Render(s.Catalog[m.cursor].Description)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render(fmt.Sprintf("Accessories  ·  level %d", s.Pet.Level)),
		"",
		strings.Join(lines, "\n"),
		"",
		detail,
		row("Happiness", bar(s.Boosted.Happiness)),
		row("Energy", bar(s.Boosted.Energy)),
		"",
		styles.muted.Render("↑/↓ move • enter wear/take off • r refresh • esc back"),
	)
}

func (m Model) renameView() string {
	return styles.box.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render("Rename "+m.snap.Pet.Name),
		"",
		"New name: "+m.text+"█",
		"",
		styles.muted.Render("enter to save • esc to cancel"),
	))
}

func (m Model) confirmRemoveView() string {
	return styles.box.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.warning.Render(fmt.Sprintf("Say goodbye to %s forever?", m.snap.Pet.Name)),
		"",
		"Level and accessories are lost.",
		"",
		styles.muted.Render("y to confirm • any other key to cancel"),
	))
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func row(label, value string) string {
	return styles.label.Render(label+":") + " " + value
}

func bar(value int) string {
	const width = 20
	filled := value * width / companion.MaxVital
	filled = max(0, min(width, filled))
	return fmt.Sprintf("%s%s %3d", strings.Repeat("█", filled), strings.Repeat("░", width-filled), value)
}

func relative(never bool, f func() string) string {
	if never {
		return "never"
	}
	return f()
}

func boostText(b companion.StatsBoost) string {
	var parts []string
	if v := b[companion.VitalHappiness]; v != 0 {
		parts = append(parts, fmt.Sprintf("+%d happiness", v))
	}
	if v := b[companion.VitalEnergy]; v != 0 {
		parts = append(parts, fmt.Sprintf("+%d energy", v))
	}
	return strings.Join(parts, ", ")
}
