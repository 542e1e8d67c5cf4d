// package services defines interface Service for podcast library providers
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the interface for podcast library providers that expose
// followed shows, show episodes, and a saved-episode library.
type Service interface {
	// Authenticate performs OAuth or token authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// SavedShows retrieves all shows the authenticated user follows.
	SavedShows(ctx context.Context) ([]Show, error)

	// ShowEpisodes retrieves every episode of the given show, oldest pages last
	// (provider order), exhausting pagination.
	ShowEpisodes(ctx context.Context, showID string) ([]Episode, error)

	// SavedEpisodes retrieves all episodes saved in the user's library.
	SavedEpisodes(ctx context.Context) ([]Episode, error)

	// SaveEpisodes adds episodes to the user's library by ID.
	SaveEpisodes(ctx context.Context, ids []string) error

	// RemoveEpisodes deletes episodes from the user's library by ID.
	RemoveEpisodes(ctx context.Context, ids []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends Service for providers using server-side OAuth2 flows.
type OAuthService interface {
	Service

	// GetAuthURL returns the authorization URL for user consent.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 configuration for callback handling.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// Show represents a podcast show from any provider.
type Show struct {
	ID            string
	Name          string
	Publisher     string
	Description   string
	TotalEpisodes int
}

// Episode represents a podcast episode from any provider.
type Episode struct {
	ID                   string
	URI                  string
	Name                 string
	ShowID               string
	ShowName             string
	ReleaseDate          string // YYYY, YYYY-MM, or YYYY-MM-DD depending on precision
	ReleaseDatePrecision string // "year", "month", or "day"
	DurationMS           int
	FullyPlayed          bool
	ResumePositionMS     int
	Paywalled            bool
}
