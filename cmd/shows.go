package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/podkeep/internal/formatter"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/urfave/cli/v3"
)

// Shows lists followed shows with optional limit.
func (r *Runner) Shows(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	useCSV := cmd.Bool("csv")

	if err := r.ensureAuthenticated(ctx); err != nil {
		return err
	}

	r.logger.Infof("listing followed shows with limit %v", limit)

	shows, err := r.service.SavedShows(ctx)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err); reauthed {
			if authErr != nil {
				return authErr
			}
			if shows, err = r.service.SavedShows(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if limit > 0 && limit < len(shows) {
		shows = shows[:limit]
	}

	if useJSON {
		return r.writeJSON(shows, pretty)
	}

	if useCSV {
		data, err := formatter.ShowsToCSV(shows)
		if err != nil {
			return fmt.Errorf("failed to format shows: %w", err)
		}
		return r.writePlain("%s", data)
	}

	return r.writePlain("%s", formatter.ShowsToText(shows))
}

// Episodes lists the episodes of a show, or the saved library when no show is
// given.
func (r *Runner) Episodes(ctx context.Context, cmd *cli.Command) error {
	showID := cmd.String("show-id")
	limit := cmd.Int("limit")
	unplayed := cmd.Bool("unplayed")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	useCSV := cmd.Bool("csv")

	if err := r.ensureAuthenticated(ctx); err != nil {
		return err
	}

	list := func(ctx context.Context) ([]services.Episode, error) {
		if showID != "" {
			return r.service.ShowEpisodes(ctx, showID)
		}
		return r.service.SavedEpisodes(ctx)
	}

	if showID != "" {
		r.logger.Infof("listing episodes for show %v", showID)
	} else {
		r.logger.Info("listing saved episodes")
	}

	episodes, err := list(ctx)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err); reauthed {
			if authErr != nil {
				return authErr
			}
			if episodes, err = list(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if unplayed {
		filtered := episodes[:0]
		for _, ep := range episodes {
			if !ep.FullyPlayed {
				filtered = append(filtered, ep)
			}
		}
		episodes = filtered
	}

	if limit > 0 && limit < len(episodes) {
		episodes = episodes[:limit]
	}

	if useJSON {
		return r.writeJSON(episodes, pretty)
	}

	if useCSV {
		data, err := formatter.EpisodesToCSV(episodes)
		if err != nil {
			return fmt.Errorf("failed to format episodes: %w", err)
		}
		return r.writePlain("%s", data)
	}

	return r.writePlain("%s", formatter.EpisodesToText(episodes))
}
