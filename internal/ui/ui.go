package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ShowListView ViewState = iota
	EpisodeListView
	ConfirmView
	RunView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	service      services.Service
	engine       tasks.LibraryRunner
	width        int
	height       int
	showList     list.Model
	shows        []services.Show
	episodeList  list.Model
	selectedShow *services.Show
	progressChan chan tasks.ProgressUpdate
	runDone      chan runCompleteMsg
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

type showsFetchedMsg struct {
	shows []services.Show
	err   error
}

type episodesFetchedMsg struct {
	show     services.Show
	episodes []services.Episode
	err      error
}

type progressUpdateMsg tasks.ProgressUpdate

type runCompleteMsg struct {
	result *tasks.RunResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, service services.Service, engine tasks.LibraryRunner) *Model {
	return &Model{
		ctx:     ctx,
		view:    ShowListView,
		service: service,
		engine:  engine,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching followed shows.
func (m *Model) Init() tea.Cmd {
	return m.fetchShows()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.showList.Width() == 0 {
			m.showList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.episodeList.Width() == 0 {
			m.episodeList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ShowListView:
			return m.handleShowListKeys(msg)
		case EpisodeListView:
			return m.handleEpisodeListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case showsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.shows = msg.shows
		items := make([]list.Item, len(msg.shows))
		for i, show := range msg.shows {
			items[i] = showItem{show: show}
		}
		m.showList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.showList.Title = "Followed Shows"
		m.showList.SetSize(m.width-4, m.height-8)
		return m, nil

	case episodesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ShowListView
			return m, nil
		}
		show := msg.show
		m.selectedShow = &show
		items := make([]list.Item, len(msg.episodes))
		for i, ep := range msg.episodes {
			items[i] = episodeItem{episode: ep}
		}
		m.episodeList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.episodeList.Title = fmt.Sprintf("Episodes of '%s'", msg.show.Name)
		m.episodeList.SetSize(m.width-4, m.height-8)
		m.view = EpisodeListView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		m.runDone = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ShowListView:
		return m.renderShowList()
	case EpisodeListView:
		return m.renderEpisodeList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleShowListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.view = ConfirmView
		return m, nil
	case "enter":
		selected := m.showList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(showItem); ok {
				return m, m.fetchEpisodes(item.show)
			}
		}
	}

	var cmd tea.Cmd
	m.showList, cmd = m.showList.Update(msg)
	return m, cmd
}

func (m *Model) handleEpisodeListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = ShowListView
		return m, nil
	}

	var cmd tea.Cmd
	m.episodeList, cmd = m.episodeList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = ShowListView
		return m, nil
	case "y":
		m.view = RunView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = ShowListView
		m.selectedShow = nil
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ShowListView:
		m.showList, cmd = m.showList.Update(msg)
	case EpisodeListView:
		m.episodeList, cmd = m.episodeList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchShows() tea.Cmd {
	return func() tea.Msg {
		shows, err := m.service.SavedShows(m.ctx)
		return showsFetchedMsg{shows: shows, err: err}
	}
}

func (m *Model) fetchEpisodes(show services.Show) tea.Cmd {
	return func() tea.Msg {
		episodes, err := m.service.ShowEpisodes(m.ctx, show.ID)
		return episodesFetchedMsg{show: show, episodes: episodes, err: err}
	}
}

// startRun launches the save run in a goroutine. The goroutine communicates
// only through channels; the completion message carries the result back into
// Update so the bubbletea loop stays the sole writer of model state.
func (m *Model) startRun() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 50)
	runDone := make(chan runCompleteMsg, 1)
	m.progressChan = progressChan
	m.runDone = runDone

	go func() {
		result, err := m.engine.SaveOldest(m.ctx, progressChan, false)
		runDone <- runCompleteMsg{result: result, err: err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan := m.progressChan
	runDone := m.runDone
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		update, ok := <-progressChan
		if !ok {
			return <-runDone
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderShowList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.save, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.showList.View(), helpView)
}

func (m *Model) renderEpisodeList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.episodeList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Save the oldest unplayed episode of every followed show?")
	info := fmt.Sprintf("\nShows: %d\n", len(m.shows))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Saving Episodes")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSaved:
		phase = "Fetching saved episodes..."
	case tasks.FetchShows:
		phase = "Fetching followed shows..."
	case tasks.FetchEpisodes, tasks.SaveEpisode:
		phase = fmt.Sprintf("Processing shows (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Run Complete!")
	info := fmt.Sprintf(
		"\nShows processed: %d\nEpisodes saved: %d\nSkipped: %d",
		m.result.Processed,
		m.result.Succeeded,
		m.result.Skipped,
	)

	var failed string
	if m.result.Failed > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("%d failures:", m.result.Failed)))
		for _, action := range m.result.Actions {
			if action.Err != nil {
				name := action.Episode.ShowName
				if action.Episode.Name != "" {
					name = fmt.Sprintf("%s - %s", name, action.Episode.Name)
				}
				failed += fmt.Sprintf("\n  • %s: %v", name, action.Err)
			}
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
