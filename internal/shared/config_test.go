package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./podkeep.db" {
			t.Errorf("expected database path ./podkeep.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Library.PageLimit != 50 {
			t.Errorf("expected page limit 50, got %d", config.Library.PageLimit)
		}

		if config.Library.MaxAttempts != 3 {
			t.Errorf("expected max attempts 3, got %d", config.Library.MaxAttempts)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		content := `
[credentials.spotify]
client_id = "abc"
client_secret = "def"
redirect_uri = "http://127.0.0.1:9999/callback"

[library]
page_limit = 25
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "abc" {
			t.Errorf("expected client_id abc, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Library.PageLimit != 25 {
			t.Errorf("expected page limit 25, got %d", config.Library.PageLimit)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error loading missing config")
		}
	})

	t.Run("SaveConfig Roundtrip", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "roundtrip_id"
		config.Credentials.Spotify.AccessToken = "roundtrip_token"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		if loaded.Credentials.Spotify.ClientID != "roundtrip_id" {
			t.Errorf("client_id not round-tripped, got %s", loaded.Credentials.Spotify.ClientID)
		}
		if loaded.Credentials.Spotify.AccessToken != "roundtrip_token" {
			t.Errorf("access_token not round-tripped, got %s", loaded.Credentials.Spotify.AccessToken)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env_secret")
		t.Setenv("SPOTIFY_REDIRECT_URI", "http://127.0.0.1:8888/callback")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env override for client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected env override for client_secret, got %s", config.Credentials.Spotify.ClientSecret)
		}
	})

	t.Run("ApplyEnv Empty Vars Keep Config", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "from_file"
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "from_file" {
			t.Errorf("empty env var should not clobber config, got %s", config.Credentials.Spotify.ClientID)
		}
	})
}

func TestSpotifyConfigToken(t *testing.T) {
	t.Run("No Token Stored", func(t *testing.T) {
		var cfg SpotifyConfig
		if cfg.Token() != nil {
			t.Error("expected nil token for empty config")
		}
	})

	t.Run("Update And Reconstruct", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)
		token := &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       expiry,
		}

		var cfg SpotifyConfig
		if err := cfg.Update(token); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		got := cfg.Token()
		if got == nil {
			t.Fatal("expected reconstructed token")
		}
		if got.AccessToken != "access" {
			t.Errorf("expected access token 'access', got %s", got.AccessToken)
		}
		if got.RefreshToken != "refresh" {
			t.Errorf("expected refresh token 'refresh', got %s", got.RefreshToken)
		}
		if !got.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, got.Expiry)
		}
	})

	t.Run("Update Keeps Refresh Token", func(t *testing.T) {
		cfg := SpotifyConfig{RefreshToken: "original_refresh"}

		err := cfg.Update(&oauth2.Token{AccessToken: "new_access"})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if cfg.RefreshToken != "original_refresh" {
			t.Errorf("refresh token should survive update, got %s", cfg.RefreshToken)
		}
		if cfg.AccessToken != "new_access" {
			t.Errorf("access token should be replaced, got %s", cfg.AccessToken)
		}
	})

	t.Run("Update Rejects Nil", func(t *testing.T) {
		var cfg SpotifyConfig
		if err := cfg.Update(nil); err == nil {
			t.Error("expected error updating with nil token")
		}
	})

	t.Run("Update Rejects Empty Access Token", func(t *testing.T) {
		var cfg SpotifyConfig
		if err := cfg.Update(&oauth2.Token{}); err == nil {
			t.Error("expected error updating with empty access token")
		}
	})
}
