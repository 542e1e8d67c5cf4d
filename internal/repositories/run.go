package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/podkeep/internal/models"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/desertthunder/podkeep/internal/tasks"
)

// RunRepository implements [models.Repository] for [models.Run] persistence,
// along with per-episode outcome records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with a generated ID
func (r *RunRepository) Create(run *models.Run) error {
	id := shared.GenerateID()
	run.SetID(id)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (id, kind, started_at, processed, succeeded, failed) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, run.Kind(), run.StartedAt(), run.Processed(), run.Succeeded(), run.Failed())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Update writes a run's final counts and finish time
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE runs
		SET finished_at = ?, processed = ?, succeeded = ?, failed = ?
		WHERE id = ?
	`

	var finishedAt any
	if !run.FinishedAt().IsZero() {
		finishedAt = run.FinishedAt()
	}

	result, err := r.db.Exec(query, finishedAt, run.Processed(), run.Succeeded(), run.Failed(), run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, kind, started_at, finished_at, processed, succeeded, failed
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// Delete removes a run and, via cascade, its episode records
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported criteria: "kind" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `
		SELECT id, kind, started_at, finished_at, processed, succeeded, failed
		FROM runs
		WHERE 1 = 1
	`

	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY started_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// AddEpisode records a single episode outcome for a run
func (r *RunRepository) AddEpisode(ep *models.RunEpisode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO run_episodes (run_id, episode_id, episode_name, show_name, release_date, action, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, ep.RunID(), ep.EpisodeID(), ep.EpisodeName(), ep.ShowName(), ep.ReleaseDate(), ep.Action(), ep.ErrMsg())
	if err != nil {
		return fmt.Errorf("failed to insert episode record: %w", err)
	}

	return nil
}

// Episodes retrieves all episode records for a run in insertion order
func (r *RunRepository) Episodes(runID string) ([]*models.RunEpisode, error) {
	query := `
		SELECT run_id, episode_id, episode_name, show_name, release_date, action, error
		FROM run_episodes
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode records: %w", err)
	}
	defer rows.Close()

	var episodes []*models.RunEpisode
	for rows.Next() {
		var runID, episodeID, episodeName, showName, releaseDate, action, errMsg string

		if err := rows.Scan(&runID, &episodeID, &episodeName, &showName, &releaseDate, &action, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan episode record: %w", err)
		}

		episodes = append(episodes, models.NewRunEpisode(runID, episodeID, episodeName, showName, releaseDate, action, errMsg))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return episodes, nil
}

// RecordResult persists an engine result against an already created run: the
// run row gets its final counts and every episode action is written in one
// transaction.
func (r *RunRepository) RecordResult(run *models.Run, result *tasks.RunResult) error {
	run.Finish(result.Processed, result.Succeeded, result.Failed)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE runs
		SET finished_at = ?, processed = ?, succeeded = ?, failed = ?
		WHERE id = ?
	`, run.FinishedAt(), run.Processed(), run.Succeeded(), run.Failed(), run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	for _, action := range result.Actions {
		errMsg := ""
		if action.Err != nil {
			errMsg = action.Err.Error()
		}

		ep := models.NewRunEpisode(
			run.ID(), action.Episode.ID, action.Episode.Name,
			action.Episode.ShowName, action.Episode.ReleaseDate, action.Action, errMsg,
		)
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO run_episodes (run_id, episode_id, episode_name, show_name, release_date, action, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, ep.RunID(), ep.EpisodeID(), ep.EpisodeName(), ep.ShowName(), ep.ReleaseDate(), ep.Action(), ep.ErrMsg())
		if err != nil {
			return fmt.Errorf("failed to insert episode record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run transaction: %w", err)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		id         string
		kind       string
		startedAt  time.Time
		finishedAt sql.NullTime
		processed  int
		succeeded  int
		failed     int
	)

	if err := row.Scan(&id, &kind, &startedAt, &finishedAt, &processed, &succeeded, &failed); err != nil {
		return nil, err
	}

	run := models.NewRun(kind)
	run.SetID(id)
	run.SetStartedAt(startedAt)
	run.SetCounts(processed, succeeded, failed)
	if finishedAt.Valid {
		run.SetFinishedAt(finishedAt.Time)
	}

	return run, nil
}
