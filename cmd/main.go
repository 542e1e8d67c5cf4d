package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	config.ApplyEnv()

	logger := shared.NewFileLogger(config.Logging)

	var spotifyService services.Service
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			svc.SetLogger(logger)
			svc.SetPageLimit(config.Library.PageLimit)
			if config.Library.MaxAttempts > 0 {
				policy := services.DefaultRetryPolicy()
				policy.MaxAttempts = config.Library.MaxAttempts
				if config.Library.RetryDelaySeconds > 0 {
					policy.InitialDelay = time.Duration(config.Library.RetryDelaySeconds) * time.Second
				}
				svc.SetRetryPolicy(policy)
			}
			spotifyService = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		Service:    spotifyService,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "podkeep",
		Usage:    "Keep the oldest unplayed episode of every followed show in your Spotify library",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
