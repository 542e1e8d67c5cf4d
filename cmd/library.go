package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/podkeep/internal/formatter"
	"github.com/desertthunder/podkeep/internal/models"
	"github.com/desertthunder/podkeep/internal/repositories"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/desertthunder/podkeep/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Save saves the oldest unplayed episode of every followed show. With --clean
// it removes fully played episodes first, so finished shows make room for the
// next episode in the same invocation.
func (r *Runner) Save(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")

	if cmd.Bool("clean") && !dryRun {
		if err := r.runLibrary(ctx, cmd, tasks.KindClean, false, r.engine.CleanFinished); err != nil {
			return err
		}
	}

	return r.runLibrary(ctx, cmd, tasks.KindSave, dryRun, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return r.engine.SaveOldest(ctx, progress, dryRun)
	})
}

// Clear removes every saved episode from the library.
func (r *Runner) Clear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") && !r.confirm("Remove ALL saved episodes from your library?") {
		return r.writePlain("Aborted.\n")
	}

	return r.runLibrary(ctx, cmd, tasks.KindClear, false, r.engine.ClearSaved)
}

// Clean removes fully played episodes from the library.
func (r *Runner) Clean(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") && !r.confirm("Remove all fully played episodes from your library?") {
		return r.writePlain("Aborted.\n")
	}

	return r.runLibrary(ctx, cmd, tasks.KindClean, false, r.engine.CleanFinished)
}

type libraryOp func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)

// runLibrary executes a library operation with progress reporting, run
// recording, and a single reauthorization retry on token expiry.
func (r *Runner) runLibrary(ctx context.Context, cmd *cli.Command, kind string, dryRun bool, op libraryOp) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.engine == nil {
		return fmt.Errorf("%w: library engine not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.ensureAuthenticated(ctx); err != nil {
		return err
	}

	r.logger.Info("starting library run", "kind", kind, "dry_run", dryRun)

	result, err := r.executeWithProgress(ctx, op)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err); reauthed {
			if authErr != nil {
				return authErr
			}
			if result, err = r.executeWithProgress(ctx, op); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if !dryRun {
		r.recordRun(kind, result)
	}

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	return r.writePlain("%s", formatter.RunResultToText(result))
}

// executeWithProgress runs the operation while draining progress updates to
// the output writer.
func (r *Runner) executeWithProgress(ctx context.Context, op libraryOp) (*tasks.RunResult, error) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := op(ctx, progress)
	close(progress)
	<-done

	return result, err
}

// recordRun persists the run outcome, tolerating an unavailable database.
func (r *Runner) recordRun(kind string, result *tasks.RunResult) {
	repo, cleanup := r.runRepository()
	if repo == nil {
		return
	}
	defer cleanup()

	run := models.NewRun(kind)
	if err := repo.Create(run); err != nil {
		r.logger.Warn("failed to record run", "error", err)
		return
	}

	if err := repo.RecordResult(run, result); err != nil {
		r.logger.Warn("failed to record run result", "error", err)
		return
	}

	r.logger.Info("run recorded", "id", run.ID(), "kind", kind)
}

// runRepository returns the injected repository, or opens one against the
// configured database. The returned cleanup closes what was opened here.
func (r *Runner) runRepository() (*repositories.RunRepository, func()) {
	noop := func() {}
	if r.repo != nil {
		return r.repo, noop
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return nil, noop
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		db.Close()
		return nil, noop
	}

	return repositories.NewRunRepository(db), func() { db.Close() }
}
