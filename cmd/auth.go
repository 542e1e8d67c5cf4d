package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/podkeep/internal/server"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/desertthunder/podkeep/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens a browser for user authorization, and
// exchanges the auth code for tokens which are persisted to the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if config == nil {
		var err error
		if _, statErr := os.Stat(configPath); statErr == nil {
			config, err = shared.LoadConfig(configPath)
			if err != nil {
				r.logger.Warnf("failed to load config, using defaults %v", err)
				config = shared.DefaultConfig()
			}
		} else {
			config = shared.DefaultConfig()
		}
		config.ApplyEnv()
		r.config = config
	}
	r.configPath = configPath

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(config, spotifyService, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := spotifyService.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}
	r.service = spotifyService
	r.engine = tasks.NewLibraryEngine(spotifyService, config.Library.RateLimit)
	r.engine.SetLogger(r.logger)

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: podkeep save\n")

	return nil
}

// AuthStatus reports the current authentication state, calling the profile
// endpoint when a token is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		if useJSON {
			return r.writeJSON(map[string]any{"authenticated": false}, pretty)
		}
		r.writePlain("Authentication: ✗ Not authenticated\n")
		r.writePlain("Run 'podkeep auth login' to authorize.\n")
		return nil
	}

	spotifyService, ok := r.service.(*services.SpotifyService)
	if !ok {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	if err := spotifyService.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with stored tokens: %w", err)
	}

	profile, err := spotifyService.UserProfile(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			if useJSON {
				return r.writeJSON(map[string]any{"authenticated": false, "reason": "token expired"}, pretty)
			}
			r.writePlain("Authentication: ✗ Token expired\n")
			r.writePlain("Run 'podkeep auth login' to reauthorize.\n")
			return nil
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON {
		return r.writeJSON(map[string]any{"authenticated": true, "user": profile}, pretty)
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	r.writePlain("User: %s (%s)\n", profile.DisplayName, profile.ID)
	return nil
}

// AuthLogout discards stored tokens from the config file.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if r.config.Credentials.Spotify.Token() == nil {
		r.writePlain("No stored tokens to discard.\n")
		return nil
	}

	r.config.Credentials.Spotify.AccessToken = ""
	r.config.Credentials.Spotify.RefreshToken = ""
	r.config.Credentials.Spotify.TokenExpiry = ""

	if err := shared.SaveConfig(configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.logger.Info("stored tokens discarded", "path", configPath)
	return r.writePlain("✓ Logged out\n")
}

// Reauth performs the full OAuth2 flow to get new tokens.
func (r *Runner) Reauth(ctx context.Context, srv services.OAuthService) error {
	token, err := r.doOAuth(r.config, srv, "reauthorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Reauthorization successful")
	if r.configPath != "" {
		r.writePlain("✓ New tokens saved to %s\n", r.configPath)
	}

	return nil
}

// ensureAuthenticated wires the stored token into the service before API calls.
//
// The refresh callback persists rotated access tokens back to the config file
// so subsequent invocations reuse them.
func (r *Runner) ensureAuthenticated(ctx context.Context) error {
	if r.service == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	oauthSrv, ok := r.service.(services.OAuthService)
	if !ok {
		return nil
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return fmt.Errorf("%w: run 'podkeep auth login' first", shared.ErrNotAuthenticated)
	}

	if spotifySrv, ok := r.service.(*services.SpotifyService); ok {
		spotifySrv.SetTokenRefreshCallback(func(refreshed *oauth2.Token) {
			if err := r.saveTokens(refreshed); err != nil {
				r.logger.Warn("failed to persist refreshed token", "error", err)
			}
		})
	}

	return oauthSrv.OAuthenticate(ctx, token)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(config *shared.Config, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// handleAuthError checks if an error is a token expiration error and triggers reauthorization if needed.
func (r *Runner) handleAuthError(ctx context.Context, err error) (bool, error) {
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, shared.ErrTokenExpired) {
		return false, err
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...\n")

	oauthSrv, ok := r.service.(services.OAuthService)
	if !ok {
		return true, fmt.Errorf("service does not support reauthorization")
	}

	if reauthErr := r.Reauth(ctx, oauthSrv); reauthErr != nil {
		return true, fmt.Errorf("reauthorization failed: %w", reauthErr)
	}

	if authErr := oauthSrv.OAuthenticate(ctx, r.config.Credentials.Spotify.Token()); authErr != nil {
		return true, fmt.Errorf("failed to authenticate with new tokens: %w", authErr)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...\n")

	return true, nil
}
