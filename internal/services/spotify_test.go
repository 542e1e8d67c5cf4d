package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/podkeep/internal/shared"
	"golang.org/x/oauth2"
)

// newTestService creates an authenticated service pointed at a test server,
// with retries tightened so failure cases return quickly.
func newTestService(t *testing.T, handler http.HandlerFunc) *SpotifyService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	srv.baseURL = server.URL
	srv.token = &oauth2.Token{AccessToken: "test_access_token"}
	srv.retry = RetryPolicy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}

	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://127.0.0.1:9999/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}

			if srv.config.RedirectURL != "http://127.0.0.1:9999/callback" {
				t.Errorf("expected custom redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			credentials := map[string]string{
				"client_secret": "test_client_secret",
			}

			_, err := NewSpotifyService(credentials)
			if err == nil {
				t.Error("expected error for missing client_id")
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			credentials := map[string]string{
				"client_id": "test_client_id",
			}

			_, err := NewSpotifyService(credentials)
			if err == nil {
				t.Error("expected error for missing client_secret")
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://127.0.0.1:8888/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if authURL == "" {
			t.Error("expected auth URL to be generated")
		}

		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
		if !strings.Contains(authURL, "user-library-modify") {
			t.Error("auth URL should request library scopes")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		srv, err := NewSpotifyService(credentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("WithAccessToken", func(t *testing.T) {
			authCreds := map[string]string{
				"access_token":  "test_access_token",
				"refresh_token": "test_refresh_token",
			}

			err := srv.Authenticate(context.Background(), authCreds)
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}

			if srv.token == nil {
				t.Fatal("expected token to be set")
			}

			if srv.token.AccessToken != "test_access_token" {
				t.Errorf("expected access token to be 'test_access_token', got %s", srv.token.AccessToken)
			}

			if srv.token.RefreshToken != "test_refresh_token" {
				t.Errorf("expected refresh token to be carried over, got %s", srv.token.RefreshToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if err == nil {
				t.Error("expected error for missing credentials")
			}

			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("OAuthenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("Rejects Nil Token", func(t *testing.T) {
			if err := srv.OAuthenticate(context.Background(), nil); !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})

		t.Run("Rejects Empty Token", func(t *testing.T) {
			if err := srv.OAuthenticate(context.Background(), &oauth2.Token{}); !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ Service = srv
		var _ OAuthService = srv
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("sets callback successfully", func(t *testing.T) {
			srv.SetTokenRefreshCallback(func(token *oauth2.Token) {
				// Callback set for testing
			})

			if srv.onTokenRefresh == nil {
				t.Error("expected callback to be set")
			}
		})

		t.Run("can set nil callback", func(t *testing.T) {
			srv.SetTokenRefreshCallback(nil)
			if srv.onTokenRefresh != nil {
				t.Error("expected callback to be nil")
			}
		})
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = srv.SavedShows(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("SavedShows", func(t *testing.T) {
		t.Run("Exhausts Pagination", func(t *testing.T) {
			var offsets []string

			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				offsets = append(offsets, r.URL.Query().Get("offset"))

				next := "next-page"
				page := SpotifyPaginatedShows{
					Items: []SpotifySavedShow{
						{Show: SpotifyShow{ID: "show1", Name: "First Show", Publisher: "Pub"}},
						{Show: SpotifyShow{ID: "show2", Name: "Second Show"}},
					},
					Total: 3,
					Next:  &next,
				}
				if r.URL.Query().Get("offset") != "0" {
					page.Items = []SpotifySavedShow{
						{Show: SpotifyShow{ID: "show3", Name: "Third Show", TotalEpisodes: 12}},
					}
					page.Next = nil
				}

				json.NewEncoder(w).Encode(page)
			})

			shows, err := srv.SavedShows(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(shows) != 3 {
				t.Fatalf("expected 3 shows, got %d", len(shows))
			}

			if len(offsets) != 2 || offsets[0] != "0" || offsets[1] != "50" {
				t.Errorf("expected offsets [0 50], got %v", offsets)
			}

			if shows[0].Name != "First Show" || shows[0].Publisher != "Pub" {
				t.Errorf("unexpected first show: %+v", shows[0])
			}
			if shows[2].TotalEpisodes != 12 {
				t.Errorf("expected total episodes to map, got %d", shows[2].TotalEpisodes)
			}
		})

		t.Run("Sends Bearer Token", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer test_access_token" {
					t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
				}
				json.NewEncoder(w).Encode(SpotifyPaginatedShows{})
			})

			if _, err := srv.SavedShows(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})

	t.Run("ShowEpisodes", func(t *testing.T) {
		t.Run("Maps Episode Fields", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasPrefix(r.URL.Path, "/shows/show1/episodes") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}

				json.NewEncoder(w).Encode(SpotifyPaginatedEpisodes{
					Items: []SpotifyEpisode{
						{
							ID:                   "ep1",
							URI:                  "spotify:episode:ep1",
							Name:                 "Pilot",
							ReleaseDate:          "2024-03-01",
							ReleaseDatePrecision: "day",
							DurationMS:           1800000,
							ResumePoint:          resumePoint{FullyPlayed: true, ResumePositionMS: 1800000},
							IsPaywallContent:     true,
						},
					},
				})
			})

			episodes, err := srv.ShowEpisodes(context.Background(), "show1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(episodes) != 1 {
				t.Fatalf("expected 1 episode, got %d", len(episodes))
			}

			ep := episodes[0]
			if ep.ID != "ep1" || ep.URI != "spotify:episode:ep1" {
				t.Errorf("unexpected identity fields: %+v", ep)
			}
			if ep.ShowID != "show1" {
				t.Errorf("expected show ID to be attached, got %s", ep.ShowID)
			}
			if !ep.FullyPlayed || !ep.Paywalled {
				t.Errorf("expected playback and paywall flags to map, got %+v", ep)
			}
			if ep.ReleaseDate != "2024-03-01" || ep.ReleaseDatePrecision != "day" {
				t.Errorf("unexpected release fields: %+v", ep)
			}
		})

		t.Run("Requires Show ID", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

			_, err := srv.ShowEpisodes(context.Background(), "")
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("SavedEpisodes", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/me/episodes") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			json.NewEncoder(w).Encode(SpotifyPaginatedSavedEpisodes{
				Items: []SpotifySavedEpisode{
					{
						AddedAt: "2024-01-01T00:00:00Z",
						Episode: SpotifyEpisode{
							ID:   "ep1",
							Name: "Saved One",
							Show: &SpotifyShow{ID: "show1", Name: "The Show"},
						},
					},
				},
			})
		})

		episodes, err := srv.SavedEpisodes(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(episodes) != 1 {
			t.Fatalf("expected 1 episode, got %d", len(episodes))
		}

		if episodes[0].ShowName != "The Show" || episodes[0].ShowID != "show1" {
			t.Errorf("expected nested show to map, got %+v", episodes[0])
		}
	})

	t.Run("SaveEpisodes", func(t *testing.T) {
		t.Run("Sends PUT With IDs", func(t *testing.T) {
			var gotMethod string
			var gotBody episodeIDs

			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				json.NewDecoder(r.Body).Decode(&gotBody)
				w.WriteHeader(http.StatusOK)
			})

			err := srv.SaveEpisodes(context.Background(), []string{"ep1", "ep2"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if gotMethod != http.MethodPut {
				t.Errorf("expected PUT, got %s", gotMethod)
			}
			if len(gotBody.IDs) != 2 || gotBody.IDs[0] != "ep1" {
				t.Errorf("unexpected request body: %+v", gotBody)
			}
		})

		t.Run("Rejects Empty Batch", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

			if err := srv.SaveEpisodes(context.Background(), nil); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("Rejects Oversized Batch", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

			ids := make([]string, maxBatchIDs+1)
			for i := range ids {
				ids[i] = fmt.Sprintf("ep%d", i)
			}

			if err := srv.SaveEpisodes(context.Background(), ids); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("RemoveEpisodes", func(t *testing.T) {
		var gotMethod string

		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			w.WriteHeader(http.StatusOK)
		})

		if err := srv.RemoveEpisodes(context.Background(), []string{"ep1"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if gotMethod != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", gotMethod)
		}
	})

	t.Run("Error Mapping", func(t *testing.T) {
		t.Run("401 Maps To Token Expired", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})

			_, err := srv.SavedShows(context.Background())
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})

		t.Run("404 Fails Without Retry", func(t *testing.T) {
			attempts := 0

			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				attempts++
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"status":404,"message":"Non existing id"}}`)
			})

			_, err := srv.ShowEpisodes(context.Background(), "missing")
			if err == nil {
				t.Fatal("expected error for 404")
			}
			if attempts != 1 {
				t.Errorf("expected single attempt for client error, got %d", attempts)
			}
			if !strings.Contains(err.Error(), "Non existing id") {
				t.Errorf("expected API message in error, got %v", err)
			}
		})

		t.Run("429 Retries With Retry-After", func(t *testing.T) {
			attempts := 0

			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				attempts++
				if attempts == 1 {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				json.NewEncoder(w).Encode(SpotifyPaginatedShows{})
			})

			if _, err := srv.SavedShows(context.Background()); err != nil {
				t.Fatalf("expected recovery after retry, got %v", err)
			}
			if attempts != 2 {
				t.Errorf("expected 2 attempts, got %d", attempts)
			}
		})

		t.Run("Server Errors Exhaust Retries", func(t *testing.T) {
			attempts := 0

			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				attempts++
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			_, err := srv.SavedShows(context.Background())
			if err == nil {
				t.Fatal("expected error after exhausted retries")
			}
			if attempts != srv.retry.MaxAttempts {
				t.Errorf("expected %d attempts, got %d", srv.retry.MaxAttempts, attempts)
			}
		})
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("calls callback on first token fetch", func(t *testing.T) {
			callbackCalled := false
			var capturedToken *oauth2.Token

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callbackCalled = true
					capturedToken = token
				},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !callbackCalled {
				t.Error("expected callback to be called on first fetch")
			}
			if capturedToken == nil || capturedToken.AccessToken != "test_token" {
				t.Errorf("expected captured token 'test_token', got %+v", capturedToken)
			}
			if token.AccessToken != "test_token" {
				t.Errorf("expected returned token 'test_token', got %s", token.AccessToken)
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			callCount := 0

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "token1"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
				},
			}

			_, _ = source.Token()
			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}

			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if callCount != 2 {
				t.Errorf("expected callback called twice, got %d", callCount)
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("doesn't call callback when token unchanged", func(t *testing.T) {
			callCount := 0

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "same_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
				},
			}

			source.Token()
			source.Token()
			source.Token()

			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}
		})

		t.Run("handles nil callback gracefully", func(t *testing.T) {
			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source:   mockSource,
				callback: nil,
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error with nil callback, got %v", err)
			}
			if token.AccessToken != "test_token" {
				t.Error("expected token to be returned despite nil callback")
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			mockSource := &mockTokenSource{
				err: errors.New("token source error"),
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if err == nil {
				t.Fatal("expected error from source")
			}
			if !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
