// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podkeep/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maxBatchIDs is the Spotify API limit for save/remove calls.
	maxBatchIDs = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyShow represents a podcast show.
type SpotifyShow struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Publisher     string         `json:"publisher"`
	Description   string         `json:"description"`
	TotalEpisodes int            `json:"total_episodes"`
	Images        []SpotifyImage `json:"images"`
	URI           string         `json:"uri"`
}

// SpotifySavedShow represents a show within the user's followed shows.
type SpotifySavedShow struct {
	AddedAt string      `json:"added_at"`
	Show    SpotifyShow `json:"show"`
}

// resumePoint tracks the user's playback position within an episode.
type resumePoint struct {
	FullyPlayed      bool `json:"fully_played"`
	ResumePositionMS int  `json:"resume_position_ms"`
}

// SpotifyEpisode represents a podcast episode.
type SpotifyEpisode struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	ReleaseDate          string         `json:"release_date"`
	ReleaseDatePrecision string         `json:"release_date_precision"`
	DurationMS           int            `json:"duration_ms"`
	ResumePoint          resumePoint    `json:"resume_point"`
	IsPaywallContent     bool           `json:"is_paywall_content"`
	IsPlayable           bool           `json:"is_playable"`
	Images               []SpotifyImage `json:"images"`
	URI                  string         `json:"uri"`
	Show                 *SpotifyShow   `json:"show,omitempty"`
}

// SpotifySavedEpisode represents an episode within the user's library.
type SpotifySavedEpisode struct {
	AddedAt string         `json:"added_at"`
	Episode SpotifyEpisode `json:"episode"`
}

// SpotifyPaginatedShows represents a paginated response of followed shows.
type SpotifyPaginatedShows struct {
	Items    []SpotifySavedShow `json:"items"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
	Next     *string            `json:"next"`
	Previous *string            `json:"previous"`
}

// SpotifyPaginatedEpisodes represents a paginated response of show episodes.
type SpotifyPaginatedEpisodes struct {
	Items    []SpotifyEpisode `json:"items"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
}

// SpotifyPaginatedSavedEpisodes represents a paginated response of saved episodes.
type SpotifyPaginatedSavedEpisodes struct {
	Items    []SpotifySavedEpisode `json:"items"`
	Total    int                   `json:"total"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
	Next     *string               `json:"next"`
	Previous *string               `json:"previous"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for show and episode library operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	logger         *log.Logger
	retry          RetryPolicy
	baseURL        string
	pageLimit      int
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8888/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"user-library-modify",
			"user-read-playback-position",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		retry:       DefaultRetryPolicy(),
		baseURL:     spotifyBaseURL,
		pageLimit:   maxBatchIDs,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetLogger attaches a logger used for retry and pagination diagnostics.
func (s *SpotifyService) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SetRetryPolicy overrides the retry behavior for API requests.
func (s *SpotifyService) SetRetryPolicy(policy RetryPolicy) {
	s.retry = policy
}

// SetPageLimit overrides the page size used for paginated endpoints (clamped to the API maximum).
func (s *SpotifyService) SetPageLimit(limit int) {
	if limit <= 0 || limit > maxBatchIDs {
		limit = maxBatchIDs
	}
	s.pageLimit = limit
}

// SetTokenRefreshCallback registers a callback invoked whenever the underlying
// token source yields a new access token, so refreshed tokens can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.onTokenRefresh = callback
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 configuration for the callback server.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Authenticate performs OAuth2 authentication with Spotify. Expects an "access_token"
// (optionally with "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates with a previously obtained [oauth2.Token].
//
// The HTTP client refreshes expired tokens automatically; refreshed tokens are
// reported through the registered token refresh callback.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes a callback
// whenever the access token changes (initial fetch or refresh).
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}

	return token, nil
}

// doRequest performs a single authenticated HTTP request to the Spotify API.
//
// Non-2xx responses map to typed errors: 401 surfaces [shared.ErrTokenExpired],
// everything else becomes an [apiError] carrying the status and any Retry-After hint.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// newAPIError builds an [apiError] from a non-2xx response, extracting the
// error message body and the Retry-After header when present.
func newAPIError(resp *http.Response) *apiError {
	apiErr := &apiError{status: resp.StatusCode}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			apiErr.retryAfter = time.Duration(seconds) * time.Second
		}
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil {
		apiErr.message = payload.Error.Message
	}

	return apiErr
}

// request wraps doRequest with the configured retry policy.
func (s *SpotifyService) request(ctx context.Context, op, method, endpoint string, body any, result any) error {
	return withRetry(ctx, s.logger, s.retry, op, func() error {
		return s.doRequest(ctx, method, endpoint, body, result)
	})
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.request(ctx, "user profile", http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedShowsPage retrieves one page of the user's followed shows.
func (s *SpotifyService) SavedShowsPage(ctx context.Context, limit, offset int) (*SpotifyPaginatedShows, error) {
	var page SpotifyPaginatedShows
	endpoint := fmt.Sprintf("/me/shows?limit=%d&offset=%d", clampLimit(limit), offset)
	if err := s.request(ctx, "saved shows", http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ShowEpisodesPage retrieves one page of a show's episodes.
func (s *SpotifyService) ShowEpisodesPage(ctx context.Context, showID string, limit, offset int) (*SpotifyPaginatedEpisodes, error) {
	if showID == "" {
		return nil, fmt.Errorf("%w: show ID required", shared.ErrMissingArgument)
	}

	var page SpotifyPaginatedEpisodes
	endpoint := fmt.Sprintf("/shows/%s/episodes?limit=%d&offset=%d", showID, clampLimit(limit), offset)
	if err := s.request(ctx, "show episodes", http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedEpisodesPage retrieves one page of the user's saved episodes.
func (s *SpotifyService) SavedEpisodesPage(ctx context.Context, limit, offset int) (*SpotifyPaginatedSavedEpisodes, error) {
	var page SpotifyPaginatedSavedEpisodes
	endpoint := fmt.Sprintf("/me/episodes?limit=%d&offset=%d", clampLimit(limit), offset)
	if err := s.request(ctx, "saved episodes", http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxBatchIDs {
		return maxBatchIDs
	}
	return limit
}

type episodeIDs struct {
	IDs []string `json:"ids"`
}

// SaveEpisodes adds up to 50 episodes to the user's library.
func (s *SpotifyService) SaveEpisodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no episode IDs provided", shared.ErrMissingArgument)
	}
	if len(ids) > maxBatchIDs {
		return fmt.Errorf("%w: maximum %d episode IDs allowed", shared.ErrInvalidArgument, maxBatchIDs)
	}

	return s.request(ctx, "save episodes", http.MethodPut, "/me/episodes", episodeIDs{IDs: ids}, nil)
}

// RemoveEpisodes deletes up to 50 episodes from the user's library.
func (s *SpotifyService) RemoveEpisodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no episode IDs provided", shared.ErrMissingArgument)
	}
	if len(ids) > maxBatchIDs {
		return fmt.Errorf("%w: maximum %d episode IDs allowed", shared.ErrInvalidArgument, maxBatchIDs)
	}

	return s.request(ctx, "remove episodes", http.MethodDelete, "/me/episodes", episodeIDs{IDs: ids}, nil)
}

// Service interface implementation

// SavedShows retrieves all followed shows, exhausting pagination.
func (s *SpotifyService) SavedShows(ctx context.Context) ([]Show, error) {
	var shows []Show
	offset := 0

	for {
		page, err := s.SavedShowsPage(ctx, s.pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			shows = append(shows, Show{
				ID:            item.Show.ID,
				Name:          item.Show.Name,
				Publisher:     item.Show.Publisher,
				Description:   item.Show.Description,
				TotalEpisodes: item.Show.TotalEpisodes,
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += s.pageLimit
	}

	return shows, nil
}

// ShowEpisodes retrieves every episode of the given show, exhausting pagination.
func (s *SpotifyService) ShowEpisodes(ctx context.Context, showID string) ([]Episode, error) {
	var episodes []Episode
	offset := 0

	for {
		page, err := s.ShowEpisodesPage(ctx, showID, s.pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			episodes = append(episodes, episodeFromAPI(item, showID, ""))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += s.pageLimit
	}

	return episodes, nil
}

// SavedEpisodes retrieves all episodes saved in the user's library, exhausting pagination.
func (s *SpotifyService) SavedEpisodes(ctx context.Context) ([]Episode, error) {
	var episodes []Episode
	offset := 0

	for {
		page, err := s.SavedEpisodesPage(ctx, s.pageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			showID, showName := "", ""
			if item.Episode.Show != nil {
				showID = item.Episode.Show.ID
				showName = item.Episode.Show.Name
			}
			episodes = append(episodes, episodeFromAPI(item.Episode, showID, showName))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += s.pageLimit
	}

	return episodes, nil
}

// episodeFromAPI converts a Spotify episode payload to the provider-neutral [Episode].
func episodeFromAPI(ep SpotifyEpisode, showID, showName string) Episode {
	return Episode{
		ID:                   ep.ID,
		URI:                  ep.URI,
		Name:                 ep.Name,
		ShowID:               showID,
		ShowName:             showName,
		ReleaseDate:          ep.ReleaseDate,
		ReleaseDatePrecision: ep.ReleaseDatePrecision,
		DurationMS:           ep.DurationMS,
		FullyPlayed:          ep.ResumePoint.FullyPlayed,
		ResumePositionMS:     ep.ResumePoint.ResumePositionMS,
		Paywalled:            ep.IsPaywallContent,
	}
}
