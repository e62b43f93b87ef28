package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tunebridge/tunebridge/internal/importer"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
	"github.com/tunebridge/tunebridge/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist picker and import view.
//
// Log output goes to a file so it does not fight the terminal UI for the
// screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	r.loadConfigFlag(cmd)

	logger, err := shared.NewFileLogger("./tmp/tunebridge-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	r.SetLogger(logger)

	spotify, err := r.spotifyClient()
	if err != nil {
		return err
	}
	if !spotify.Authenticated() {
		return fmt.Errorf("%w: run tunebridge spotify auth first", shared.ErrNotAuthenticated)
	}

	var reachability importer.Reachability
	start := func(selections []models.PlaylistSelection) (*importer.Manager, error) {
		deps, err := r.importDeps(ctx)
		if err != nil {
			return nil, err
		}
		reachability = deps.Reachability
		return importer.NewManager(deps, selections)
	}

	model := ui.NewModel(ctx, spotify, start)
	p := tea.NewProgram(model)

	_, runErr := p.Run()
	if reachability != nil {
		reachability.Stop()
	}
	return runErr
}
