// package models defines the data model for podcast library run history
package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/podkeep/internal/tasks"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string      // ID returns the unique identifier for this model
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Run represents one recorded library operation.
type Run struct {
	id         string
	kind       string
	startedAt  time.Time
	finishedAt time.Time
	processed  int
	succeeded  int
	failed     int
}

// NewRun creates a run of the given kind, started now.
func NewRun(kind string) *Run {
	return &Run{
		kind:      kind,
		startedAt: time.Now().UTC(),
	}
}

func (r *Run) ID() string            { return r.id }
func (r *Run) Kind() string          { return r.kind }
func (r *Run) StartedAt() time.Time  { return r.startedAt }
func (r *Run) FinishedAt() time.Time { return r.finishedAt }
func (r *Run) Processed() int        { return r.processed }
func (r *Run) Succeeded() int        { return r.succeeded }
func (r *Run) Failed() int           { return r.failed }

func (r *Run) SetID(id string)           { r.id = id }
func (r *Run) SetStartedAt(t time.Time)  { r.startedAt = t }
func (r *Run) SetFinishedAt(t time.Time) { r.finishedAt = t }
func (r *Run) SetCounts(p, s, f int)     { r.processed, r.succeeded, r.failed = p, s, f }

// Finish stamps the run as completed with final counts.
func (r *Run) Finish(processed, succeeded, failed int) {
	r.processed = processed
	r.succeeded = succeeded
	r.failed = failed
	r.finishedAt = time.Now().UTC()
}

// Validate checks run invariants before persistence.
func (r *Run) Validate() error {
	switch r.kind {
	case tasks.KindSave, tasks.KindClear, tasks.KindClean:
	default:
		return fmt.Errorf("invalid run kind: %q", r.kind)
	}

	if r.startedAt.IsZero() {
		return fmt.Errorf("run has no start time")
	}

	if r.processed < 0 || r.succeeded < 0 || r.failed < 0 {
		return fmt.Errorf("run counts must be non-negative")
	}

	return nil
}

// RunEpisode represents a single episode outcome within a run.
type RunEpisode struct {
	runID       string
	episodeID   string
	episodeName string
	showName    string
	releaseDate string
	action      string
	errMsg      string
}

// NewRunEpisode creates an episode record for a run. errMsg is empty for
// successful actions.
func NewRunEpisode(runID, episodeID, episodeName, showName, releaseDate, action, errMsg string) *RunEpisode {
	return &RunEpisode{
		runID:       runID,
		episodeID:   episodeID,
		episodeName: episodeName,
		showName:    showName,
		releaseDate: releaseDate,
		action:      action,
		errMsg:      errMsg,
	}
}

func (e *RunEpisode) RunID() string       { return e.runID }
func (e *RunEpisode) EpisodeID() string   { return e.episodeID }
func (e *RunEpisode) EpisodeName() string { return e.episodeName }
func (e *RunEpisode) ShowName() string    { return e.showName }
func (e *RunEpisode) ReleaseDate() string { return e.releaseDate }
func (e *RunEpisode) Action() string      { return e.action }
func (e *RunEpisode) ErrMsg() string      { return e.errMsg }
func (e *RunEpisode) Failed() bool        { return e.errMsg != "" }

// Validate checks episode record invariants before persistence.
func (e *RunEpisode) Validate() error {
	if e.runID == "" {
		return fmt.Errorf("episode record has no run ID")
	}

	switch e.action {
	case tasks.ActionSaved, tasks.ActionRemoved:
	default:
		return fmt.Errorf("invalid episode action: %q", e.action)
	}

	// Listing failures carry a show name and an error but no episode identity.
	if e.episodeID == "" && e.errMsg == "" {
		return fmt.Errorf("episode record needs an episode ID or an error")
	}

	return nil
}
