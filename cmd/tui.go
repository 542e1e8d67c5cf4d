package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/desertthunder/podkeep/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing shows and running
// library operations.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.service == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if r.engine == nil {
		return fmt.Errorf("%w: library engine not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.ensureAuthenticated(ctx); err != nil {
		return err
	}

	// Redirect logs to file only, so they don't interfere with TUI rendering
	logCfg := r.config.Logging
	if logCfg.Path == "" {
		logCfg.Path = "./tmp/podkeep-tui.log"
	}
	r.SetLogger(shared.NewLogger(shared.RotatingWriter(logCfg)))

	model := ui.NewModel(ctx, r.service, r.engine)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
