package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/desertthunder/podkeep/internal/repositories"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/desertthunder/podkeep/internal/tasks"
	tu "github.com/desertthunder/podkeep/internal/testing"
	"github.com/urfave/cli/v3"
)

func newTestRepo(t *testing.T) *repositories.RunRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return repositories.NewRunRepository(db)
}

func newTestApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:     "podkeep",
		Commands: runner.register(),
	}
}

func TestLibraryCommands(t *testing.T) {
	shows := []services.Show{
		{ID: "s1", Name: "Show One", TotalEpisodes: 2},
	}
	episodes := map[string][]services.Episode{
		"s1": {
			{ID: "e1", URI: "spotify:episode:e1", Name: "Old", ShowID: "s1", ReleaseDate: "2020-01-01", ReleaseDatePrecision: "day"},
			{ID: "e2", URI: "spotify:episode:e2", Name: "New", ShowID: "s1", ReleaseDate: "2024-01-01", ReleaseDatePrecision: "day"},
		},
	}

	t.Run("save records a run", func(t *testing.T) {
		mock := &tu.MockService{Shows: shows, Episodes: episodes}
		repo := newTestRepo(t)
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    repo,
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "save"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.SavedIDs) != 1 || mock.SavedIDs[0][0] != "e1" {
			t.Errorf("expected oldest episode to be saved, got %v", mock.SavedIDs)
		}
		if !strings.Contains(output.String(), "Saved 1") {
			t.Errorf("expected save summary, got %q", output.String())
		}

		runs, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(runs))
		}
		if runs[0].Kind() != tasks.KindSave {
			t.Errorf("expected save run, got %s", runs[0].Kind())
		}
		if runs[0].Succeeded() != 1 {
			t.Errorf("expected 1 succeeded, got %d", runs[0].Succeeded())
		}
	})

	t.Run("save with dry-run skips writes and recording", func(t *testing.T) {
		mock := &tu.MockService{Shows: shows, Episodes: episodes}
		repo := newTestRepo(t)
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    repo,
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "save", "--dry-run"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.SavedIDs) != 0 {
			t.Errorf("expected no save calls, got %v", mock.SavedIDs)
		}
		if !strings.Contains(output.String(), "Would have saved") {
			t.Errorf("expected dry run summary, got %q", output.String())
		}

		runs, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("expected no recorded runs, got %d", len(runs))
		}
	})

	t.Run("save outputs JSON", func(t *testing.T) {
		mock := &tu.MockService{Shows: shows, Episodes: episodes}
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    newTestRepo(t),
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "save", "--json"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), `"Succeeded":1`) {
			t.Errorf("expected JSON result, got %q", output.String())
		}
	})

	t.Run("save with clean removes played episodes first", func(t *testing.T) {
		mock := &tu.MockService{
			Shows:    shows,
			Episodes: episodes,
			Saved: []services.Episode{
				{ID: "e0", URI: "spotify:episode:e0", Name: "Finished", ShowID: "s1", ReleaseDate: "2019-01-01", ReleaseDatePrecision: "day", FullyPlayed: true},
			},
		}
		repo := newTestRepo(t)
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    repo,
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "save", "--clean"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.RemovedIDs) != 1 || mock.RemovedIDs[0][0] != "e0" {
			t.Errorf("expected the played episode removed first, got %v", mock.RemovedIDs)
		}
		if len(mock.SavedIDs) != 1 || mock.SavedIDs[0][0] != "e1" {
			t.Errorf("expected oldest episode saved after cleaning, got %v", mock.SavedIDs)
		}

		runs, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected clean and save runs recorded, got %d", len(runs))
		}
	})

	t.Run("save with dry-run skips the clean pass", func(t *testing.T) {
		mock := &tu.MockService{
			Shows:    shows,
			Episodes: episodes,
			Saved: []services.Episode{
				{ID: "e0", URI: "spotify:episode:e0", Name: "Finished", ShowID: "s1", ReleaseDate: "2019-01-01", ReleaseDatePrecision: "day", FullyPlayed: true},
			},
		}
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    newTestRepo(t),
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "save", "--clean", "--dry-run"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.RemovedIDs) != 0 {
			t.Errorf("expected no remove calls during dry run, got %v", mock.RemovedIDs)
		}
		if len(mock.SavedIDs) != 0 {
			t.Errorf("expected no save calls during dry run, got %v", mock.SavedIDs)
		}
	})

	t.Run("save without service fails", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Output: &bytes.Buffer{},
			Logger: shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		err := app.Run(context.Background(), []string{"podkeep", "save"})
		if err == nil {
			t.Fatal("expected error without a service")
		}
		if !strings.Contains(err.Error(), shared.ErrServiceUnavailable.Error()) {
			t.Errorf("expected service unavailable error, got %v", err)
		}
	})

	t.Run("clear requires confirmation", func(t *testing.T) {
		mock := &tu.MockService{Saved: episodes["s1"]}
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    newTestRepo(t),
			Output:  output,
			Input:   strings.NewReader("n\n"),
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "clear"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.RemovedIDs) != 0 {
			t.Errorf("expected no remove calls, got %v", mock.RemovedIDs)
		}
		if !strings.Contains(output.String(), "Aborted") {
			t.Errorf("expected abort message, got %q", output.String())
		}
	})

	t.Run("clear with yes removes saved episodes", func(t *testing.T) {
		mock := &tu.MockService{Saved: episodes["s1"]}
		repo := newTestRepo(t)
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    repo,
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "clear", "--yes"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.RemovedIDs) != 1 || len(mock.RemovedIDs[0]) != 2 {
			t.Errorf("expected one batch of 2 removals, got %v", mock.RemovedIDs)
		}

		runs, err := repo.List(map[string]any{"kind": tasks.KindClear})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 clear run, got %d", len(runs))
		}
	})

	t.Run("clean removes only played episodes", func(t *testing.T) {
		saved := []services.Episode{
			{ID: "e1", URI: "spotify:episode:e1", Name: "Done", ShowID: "s1", ReleaseDate: "2020-01-01", ReleaseDatePrecision: "day", FullyPlayed: true},
			{ID: "e2", URI: "spotify:episode:e2", Name: "Pending", ShowID: "s1", ReleaseDate: "2024-01-01", ReleaseDatePrecision: "day"},
		}
		mock := &tu.MockService{Saved: saved}
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Service: mock,
			Repo:    newTestRepo(t),
			Output:  output,
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := newTestApp(runner)
		if err := app.Run(context.Background(), []string{"podkeep", "clean", "--yes"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mock.RemovedIDs) != 1 || len(mock.RemovedIDs[0]) != 1 || mock.RemovedIDs[0][0] != "e1" {
			t.Errorf("expected only the played episode removed, got %v", mock.RemovedIDs)
		}
	})
}

func TestExecuteWithProgress(t *testing.T) {
	t.Run("drains progress updates to output", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Output: output,
			Logger: shared.NewLogger(&bytes.Buffer{}),
		})

		result, err := runner.executeWithProgress(context.Background(), func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
			progress <- tasks.ProgressUpdate{Message: "first step"}
			progress <- tasks.ProgressUpdate{Message: "second step"}
			return &tasks.RunResult{Kind: tasks.KindSave}, nil
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result == nil || result.Kind != tasks.KindSave {
			t.Errorf("expected result to pass through, got %+v", result)
		}
		if !strings.Contains(output.String(), "first step") || !strings.Contains(output.String(), "second step") {
			t.Errorf("expected progress messages in output, got %q", output.String())
		}
	})
}
