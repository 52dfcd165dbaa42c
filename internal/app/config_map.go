package app

import (
	"time"

	"shoutbox/internal/artifact"
	"shoutbox/internal/config"
	"shoutbox/internal/instagram"
)

func artifactConfig(cfg *config.Config) artifact.Config {
	out := artifact.Config{Backend: cfg.Artifact.Backend}
	if s3 := cfg.Artifact.S3; s3 != nil {
		out.S3 = artifact.S3Config{
			Bucket:        s3.Bucket,
			Region:        s3.Region,
			KeyPrefix:     s3.KeyPrefix,
			PublicBaseURL: s3.PublicBaseURL,
		}
	}
	if l := cfg.Artifact.Local; l != nil {
		out.Local = artifact.LocalConfig{
			Dir:     l.Dir,
			BaseURL: l.BaseURL,
		}
	}
	return out
}

func instagramConfig(cfg *config.Config) (instagram.Config, error) {
	httpTimeout, err := config.ParseDurationOrDefault("instagram.http_timeout", cfg.Instagram.HTTPTimeout, 30*time.Second)
	if err != nil {
		return instagram.Config{}, err
	}
	pollInterval, err := config.ParseDurationOrDefault("instagram.poll_interval", cfg.Instagram.PollInterval, 3*time.Second)
	if err != nil {
		return instagram.Config{}, err
	}
	pollTimeout, err := config.ParseDurationOrDefault("instagram.poll_timeout", cfg.Instagram.PollTimeout, 30*time.Second)
	if err != nil {
		return instagram.Config{}, err
	}
	return instagram.Config{
		AccountID:    cfg.Instagram.AccountID,
		AccessToken:  cfg.Instagram.AccessToken,
		GraphVersion: cfg.Instagram.GraphVersion,
		BaseURL:      cfg.Instagram.BaseURL,
		RatePerSec:   float64(cfg.Instagram.RatePerSec),
		HTTPTimeout:  httpTimeout,
		PollInterval: pollInterval,
		PollTimeout:  pollTimeout,
	}, nil
}
