package tasks

import (
	"fmt"

	"github.com/desertthunder/podkeep/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSaved Phase = iota
	FetchShows
	FetchEpisodes
	SaveEpisode
	RemoveEpisodes
	Summarize
)

func (p Phase) String() string {
	switch p {
	case FetchSaved:
		return "fetch_saved"
	case FetchShows:
		return "fetch_shows"
	case FetchEpisodes:
		return "fetch_episodes"
	case SaveEpisode:
		return "save_episode"
	case RemoveEpisodes:
		return "remove_episodes"
	case Summarize:
		return "summarize"
	default:
		return ""
	}
}

func fetchSavedUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSaved,
		Step:    1,
		Total:   1,
		Message: "Fetching saved episodes...",
	}
}

func fetchShowsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchShows,
		Step:    1,
		Total:   1,
		Message: "Fetching followed shows...",
	}
}

func fetchEpisodesUpdate(step, total int, show services.Show) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchEpisodes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, show.Name),
		Data:    show,
	}
}

func savedEpisodeUpdate(step, total int, ep services.Episode) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveEpisode,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s (%s)", step, total, ep.ShowName, ep.Name, ep.ReleaseDate),
		Data:    ep,
	}
}

func saveFailedUpdate(step, total int, show services.Show, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveEpisode,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, show.Name, err),
	}
}

func removeBatchUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveEpisodes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing %d episodes...", step, total, count),
	}
}

func summaryUpdate(message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    1,
		Total:   1,
		Message: message,
	}
}
