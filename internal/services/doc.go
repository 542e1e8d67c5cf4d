// Package services defines the [Service] interface for podcast providers and implements it for Spotify.
//
// # Service Interface
//
// Library operations (listing shows, listing episodes, saving and removing
// episodes) work against the provider-neutral [Show] and [Episode] types.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh
// token; refreshed tokens are reported through SetTokenRefreshCallback so the
// CLI can persist them.
//
// Paginated endpoints (/me/shows, /shows/{id}/episodes, /me/episodes) are
// exhausted page by page at the API maximum of 50 items per request.
//
// # Retries
//
// Every API request runs under a [RetryPolicy]. Rate limits (429), server
// errors (5xx), and connection failures retry with exponential backoff; a
// Retry-After header takes precedence over the computed delay. Client errors
// fail immediately.
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
//
// [SpotifyService] implements this for the server-side OAuth flow used by the CLI.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrMissingCredentials] : required credential keys absent
//   - [shared.ErrMissingArgument] : required ID arguments absent
package services
