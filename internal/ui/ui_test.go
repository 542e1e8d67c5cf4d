package ui

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/tasks"
	tu "github.com/desertthunder/podkeep/internal/testing"
)

// stubRunner feeds progress updates and a fixed result, holding the run open
// until release is closed.
type stubRunner struct {
	result  *tasks.RunResult
	err     error
	updates []tasks.ProgressUpdate
	release chan struct{}
}

func (s *stubRunner) SaveOldest(ctx context.Context, progress chan<- tasks.ProgressUpdate, dryRun bool) (*tasks.RunResult, error) {
	for _, update := range s.updates {
		progress <- update
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

func (s *stubRunner) ClearSaved(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	return s.result, s.err
}

func (s *stubRunner) CleanFinished(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	return s.result, s.err
}

// drainRun executes the command chain from startRun until the completion
// message has been applied to the model.
func drainRun(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()

	for i := 0; i < 100; i++ {
		if cmd == nil {
			t.Fatal("command chain ended before run completion")
		}

		msg := cmd()
		if msg == nil {
			t.Fatal("received nil message before run completion")
		}

		var model tea.Model
		model, cmd = m.Update(msg)
		m = model.(*Model)

		if _, ok := msg.(runCompleteMsg); ok {
			return
		}
	}

	t.Fatal("run did not complete")
}

func TestStartRun(t *testing.T) {
	t.Run("delivers result through messages", func(t *testing.T) {
		want := &tasks.RunResult{Kind: tasks.KindSave, Processed: 3, Succeeded: 2, Skipped: 1}
		runner := &stubRunner{
			result: want,
			updates: []tasks.ProgressUpdate{
				{Phase: tasks.FetchShows, Message: "Fetching followed shows..."},
				{Phase: tasks.SaveEpisode, Step: 1, Total: 3, Message: "Saved episode"},
			},
		}

		m := NewModel(context.Background(), &tu.MockService{}, runner)
		m.view = RunView

		drainRun(t, m, m.startRun())

		if m.view != ResultView {
			t.Errorf("expected result view, got %v", m.view)
		}
		if m.result != want {
			t.Errorf("expected result %+v, got %+v", want, m.result)
		}
		if m.progressChan != nil || m.runDone != nil {
			t.Error("expected run channels to be cleared after completion")
		}
	})

	t.Run("delivers run error through messages", func(t *testing.T) {
		runner := &stubRunner{err: fmt.Errorf("listing failed")}

		m := NewModel(context.Background(), &tu.MockService{}, runner)
		m.view = RunView

		drainRun(t, m, m.startRun())

		if m.err == nil || m.err.Error() != "listing failed" {
			t.Errorf("expected run error to surface, got %v", m.err)
		}
		if m.view != ResultView {
			t.Errorf("expected result view, got %v", m.view)
		}
	})

	t.Run("run goroutine does not touch the model", func(t *testing.T) {
		release := make(chan struct{})
		runner := &stubRunner{
			result:  &tasks.RunResult{Kind: tasks.KindSave, Succeeded: 1},
			release: release,
		}

		m := NewModel(context.Background(), &tu.MockService{}, runner)
		m.view = RunView

		cmd := m.startRun()

		// Render continuously while the run goroutine is live; the race
		// detector flags any write to model state from that goroutine.
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = m.View()
				}
			}
		}()

		time.Sleep(10 * time.Millisecond)
		close(release)
		time.Sleep(10 * time.Millisecond)
		close(stop)
		wg.Wait()

		drainRun(t, m, cmd)

		if m.result == nil || m.result.Succeeded != 1 {
			t.Errorf("expected completed result, got %+v", m.result)
		}
	})
}

func TestWaitForProgress(t *testing.T) {
	t.Run("returns nil message without an active run", func(t *testing.T) {
		m := NewModel(context.Background(), &tu.MockService{}, &stubRunner{})

		if msg := m.waitForProgress()(); msg != nil {
			t.Errorf("expected nil message, got %v", msg)
		}
	})
}

var _ services.Service = (*tu.MockService)(nil)
var _ tasks.LibraryRunner = (*stubRunner)(nil)
