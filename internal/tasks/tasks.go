// package tasks implements podcast library operations against a provider service.
//
// The core abstraction is LibraryEngine, which orchestrates saving the oldest
// unplayed episode of each followed show, clearing the saved library, and
// pruning finished episodes. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/shared"
	"golang.org/x/time/rate"
)

// Run kinds recorded in history.
const (
	KindSave  = "save"
	KindClear = "clear"
	KindClean = "clean"
)

// Episode actions recorded in history.
const (
	ActionSaved   = "saved"
	ActionRemoved = "removed"
)

// EpisodeAction represents the outcome of acting on a single episode.
type EpisodeAction struct {
	Episode services.Episode // Episode acted on (show fields only when listing failed)
	Action  string           // ActionSaved or ActionRemoved
	Err     error            // Error if the action failed
}

// RunResult contains aggregate and per-episode results from a library run.
type RunResult struct {
	Kind      string          // KindSave, KindClear, or KindClean
	DryRun    bool            // True when no writes were performed
	Processed int             // Items examined (shows for save, episodes otherwise)
	Succeeded int             // Successful actions
	Failed    int             // Failed actions
	Skipped   int             // Shows with no eligible episode
	Actions   []EpisodeAction // Individual episode outcomes
}

// LibraryRunner defines the long-running library operations.
type LibraryRunner interface {
	// SaveOldest saves the oldest unplayed episode of every followed show.
	SaveOldest(ctx context.Context, progress chan<- ProgressUpdate, dryRun bool) (*RunResult, error)

	// ClearSaved removes every episode from the saved library.
	ClearSaved(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error)

	// CleanFinished removes fully played episodes from the saved library.
	CleanFinished(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error)
}

// LibraryEngine implements LibraryRunner against a provider service,
// throttling API calls with a rate limiter.
type LibraryEngine struct {
	service services.Service
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewLibraryEngine creates a LibraryEngine. A non-positive requestsPerSecond
// disables throttling.
func NewLibraryEngine(service services.Service, requestsPerSecond float64) *LibraryEngine {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &LibraryEngine{
		service: service,
		limiter: limiter,
	}
}

// SetLogger attaches a logger for per-item diagnostics.
func (e *LibraryEngine) SetLogger(logger *log.Logger) {
	e.logger = logger
}

// throttle blocks until the rate limiter permits the next API call.
func (e *LibraryEngine) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *LibraryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// fatal reports whether an error should abort the whole run instead of
// tolerating it as a per-item failure.
func fatal(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *LibraryEngine) logError(msg string, keyvals ...any) {
	if e.logger != nil {
		e.logger.Error(msg, keyvals...)
	}
}

// SaveOldest walks every followed show and saves its oldest unplayed,
// unsaved, non-paywalled episode to the library.
//
// Per-show failures are recorded and tolerated; authentication failures abort
// the run. With dryRun set no save calls are made, the result reflects what
// would have been saved.
func (e *LibraryEngine) SaveOldest(ctx context.Context, progress chan<- ProgressUpdate, dryRun bool) (*RunResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: provider service not initialized", shared.ErrServiceUnavailable)
	}

	result := &RunResult{Kind: KindSave, DryRun: dryRun}

	e.sendProgress(progress, fetchSavedUpdate())
	if err := e.throttle(ctx); err != nil {
		return result, err
	}

	savedEpisodes, err := e.service.SavedEpisodes(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch saved episodes: %w", err)
	}

	saved := make(map[string]bool, len(savedEpisodes))
	for _, ep := range savedEpisodes {
		saved[ep.ID] = true
	}

	e.sendProgress(progress, fetchShowsUpdate())
	if err := e.throttle(ctx); err != nil {
		return result, err
	}

	shows, err := e.service.SavedShows(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch followed shows: %w", err)
	}

	total := len(shows)

	for i, show := range shows {
		e.sendProgress(progress, fetchEpisodesUpdate(i+1, total, show))

		if err := e.throttle(ctx); err != nil {
			return result, err
		}

		result.Processed++

		episodes, err := e.service.ShowEpisodes(ctx, show.ID)
		if err != nil {
			if fatal(err) {
				return result, err
			}

			e.logError("failed to list episodes", "show", show.Name, "error", err)
			result.Failed++
			result.Actions = append(result.Actions, EpisodeAction{
				Episode: services.Episode{ShowID: show.ID, ShowName: show.Name},
				Action:  ActionSaved,
				Err:     err,
			})
			e.sendProgress(progress, saveFailedUpdate(i+1, total, show, err))
			continue
		}

		candidate, ok := oldestUnplayed(episodes, saved)
		if !ok {
			result.Skipped++
			continue
		}

		candidate.ShowName = show.Name

		if !dryRun {
			if err := e.throttle(ctx); err != nil {
				return result, err
			}

			if err := e.service.SaveEpisodes(ctx, []string{candidate.ID}); err != nil {
				if fatal(err) {
					return result, err
				}

				e.logError("failed to save episode", "show", show.Name, "episode", candidate.Name, "error", err)
				result.Failed++
				result.Actions = append(result.Actions, EpisodeAction{Episode: candidate, Action: ActionSaved, Err: err})
				e.sendProgress(progress, saveFailedUpdate(i+1, total, show, err))
				continue
			}
		}

		saved[candidate.ID] = true
		result.Succeeded++
		result.Actions = append(result.Actions, EpisodeAction{Episode: candidate, Action: ActionSaved})
		e.sendProgress(progress, savedEpisodeUpdate(i+1, total, candidate))
	}

	e.sendProgress(progress, summaryUpdate(fmt.Sprintf(
		"Saved %d episodes (%d shows skipped, %d failures)", result.Succeeded, result.Skipped, result.Failed)))

	return result, nil
}

// ClearSaved removes every episode from the saved library in batches.
//
// A failed batch marks its episodes as failed and the run continues with the
// remaining batches.
func (e *LibraryEngine) ClearSaved(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	return e.removeEpisodes(ctx, progress, KindClear, func(services.Episode) bool { return true })
}

// CleanFinished removes fully played episodes from the saved library.
func (e *LibraryEngine) CleanFinished(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	return e.removeEpisodes(ctx, progress, KindClean, func(ep services.Episode) bool { return ep.FullyPlayed })
}

func (e *LibraryEngine) removeEpisodes(ctx context.Context, progress chan<- ProgressUpdate, kind string, keep func(services.Episode) bool) (*RunResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: provider service not initialized", shared.ErrServiceUnavailable)
	}

	result := &RunResult{Kind: kind}

	e.sendProgress(progress, fetchSavedUpdate())
	if err := e.throttle(ctx); err != nil {
		return result, err
	}

	savedEpisodes, err := e.service.SavedEpisodes(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch saved episodes: %w", err)
	}

	var targets []services.Episode
	for _, ep := range savedEpisodes {
		if keep(ep) {
			targets = append(targets, ep)
		}
	}

	byID := make(map[string]services.Episode, len(targets))
	ids := make([]string, 0, len(targets))
	for _, ep := range targets {
		byID[ep.ID] = ep
		ids = append(ids, ep.ID)
	}

	batches := batchIDs(ids, 50)

	for i, batch := range batches {
		e.sendProgress(progress, removeBatchUpdate(i+1, len(batches), len(batch)))

		if err := e.throttle(ctx); err != nil {
			return result, err
		}

		result.Processed += len(batch)

		err := e.service.RemoveEpisodes(ctx, batch)
		if err != nil && fatal(err) {
			return result, err
		}

		for _, id := range batch {
			action := EpisodeAction{Episode: byID[id], Action: ActionRemoved, Err: err}
			if err != nil {
				result.Failed++
			} else {
				result.Succeeded++
			}
			result.Actions = append(result.Actions, action)
		}

		if err != nil {
			e.logError("failed to remove episode batch", "batch", i+1, "size", len(batch), "error", err)
		}
	}

	e.sendProgress(progress, summaryUpdate(fmt.Sprintf(
		"Removed %d of %d episodes (%d failures)", result.Succeeded, result.Processed, result.Failed)))

	return result, nil
}
