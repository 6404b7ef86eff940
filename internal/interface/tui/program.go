package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alem-hub/alem-companion/internal/engine"
)

// Run shows the companion until the owner quits or ctx is cancelled. Engine
// snapshots are forwarded to the program as SnapshotMsg.
func Run(ctx context.Context, eng *engine.Engine, input InputSink, opts Options) error {
	p := tea.NewProgram(
		NewModel(ctx, eng, input, opts),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	unsubscribe := eng.Subscribe(func(s engine.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: s})
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
