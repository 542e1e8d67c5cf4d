package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/podkeep/internal/formatter"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists past library runs, or shows one run in detail when an ID
// argument is given.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("id")
	kind := cmd.String("kind")
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	repo, cleanup := r.runRepository()
	if repo == nil {
		return fmt.Errorf("%w: run 'podkeep setup' to initialize the database", shared.ErrServiceUnavailable)
	}
	defer cleanup()

	if runID != "" {
		run, err := repo.Get(runID)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}

		episodes, err := repo.Episodes(runID)
		if err != nil {
			return fmt.Errorf("failed to load run episodes: %w", err)
		}

		if useJSON {
			return r.writeJSON(map[string]any{
				"id":          run.ID(),
				"kind":        run.Kind(),
				"started_at":  run.StartedAt(),
				"finished_at": run.FinishedAt(),
				"processed":   run.Processed(),
				"succeeded":   run.Succeeded(),
				"failed":      run.Failed(),
				"episodes":    len(episodes),
			}, pretty)
		}

		return r.writePlain("%s", formatter.RunDetailToText(run, episodes))
	}

	criteria := map[string]any{}
	if kind != "" {
		criteria["kind"] = kind
	}
	if limit > 0 {
		criteria["limit"] = int(limit)
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if useJSON {
		summaries := make([]map[string]any, 0, len(runs))
		for _, run := range runs {
			summaries = append(summaries, map[string]any{
				"id":         run.ID(),
				"kind":       run.Kind(),
				"started_at": run.StartedAt(),
				"processed":  run.Processed(),
				"succeeded":  run.Succeeded(),
				"failed":     run.Failed(),
			})
		}
		return r.writeJSON(summaries, pretty)
	}

	return r.writePlain("%s", formatter.HistoryToText(runs))
}

// HistoryDelete removes a recorded run and its episode records.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("id")
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	repo, cleanup := r.runRepository()
	if repo == nil {
		return fmt.Errorf("%w: run 'podkeep setup' to initialize the database", shared.ErrServiceUnavailable)
	}
	defer cleanup()

	if err := repo.Delete(runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return r.writePlainln("Deleted run %s", runID)
}
