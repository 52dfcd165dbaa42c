package config

import (
	"errors"
	"fmt"
	"strings"

	"shoutbox/internal/render"
)

// Validate performs cross-field checks. It is installed as the manager
// validator so a bad file is rejected before commit, both at startup
// and on hot reload.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	if strings.TrimSpace(c.Fonts.Dir) == "" {
		return errors.New("fonts.dir is required")
	}

	if c.Render != nil {
		opts := c.Render.Options()
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Artifact.Backend)) {
	case "", "s3":
		if c.Artifact.S3 == nil || strings.TrimSpace(c.Artifact.S3.Bucket) == "" {
			return errors.New("artifact.s3.bucket is required for the s3 backend")
		}
		if strings.TrimSpace(c.Artifact.S3.Region) == "" {
			return errors.New("artifact.s3.region is required for the s3 backend")
		}
	case "local":
		if c.Artifact.Local == nil || strings.TrimSpace(c.Artifact.Local.Dir) == "" {
			return errors.New("artifact.local.dir is required for the local backend")
		}
		if strings.TrimSpace(c.Artifact.Local.BaseURL) == "" {
			return errors.New("artifact.local.base_url is required for the local backend")
		}
	default:
		return fmt.Errorf("artifact.backend: unknown backend %q", c.Artifact.Backend)
	}

	if strings.TrimSpace(c.Instagram.AccountID) == "" {
		return errors.New("instagram.account_id is required")
	}
	if strings.TrimSpace(c.Instagram.AccessToken) == "" {
		return errors.New("instagram.access_token is required")
	}
	for _, f := range []struct{ name, val string }{
		{"instagram.http_timeout", c.Instagram.HTTPTimeout},
		{"instagram.poll_interval", c.Instagram.PollInterval},
		{"instagram.poll_timeout", c.Instagram.PollTimeout},
		{"publisher.retry_base", c.Publisher.RetryBase},
		{"publisher.retry_max_delay", c.Publisher.RetryMaxDelay},
		{"publisher.schedule_tolerance", c.Publisher.ScheduleTolerance},
		{"sweep.stale_processing", c.Sweep.StaleProcessing},
	} {
		if _, err := ParseDurationField(f.name, f.val); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Publisher.AccountTitle) == "" {
		return errors.New("publisher.account_title is required")
	}
	if c.Publisher.Workers < 0 {
		return errors.New("publisher.workers must not be negative")
	}
	if c.Publisher.RetryMax < 0 {
		return errors.New("publisher.retry_max must not be negative")
	}

	if c.Notify != nil && c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.Token) == "" {
			return errors.New("notify.token is required when notify is enabled")
		}
		if c.Notify.ChatID == 0 {
			return errors.New("notify.chat_id is required when notify is enabled")
		}
	}
	return nil
}

// Options overlays the configured overrides on the compositor defaults.
func (rc *RenderConfig) Options() render.Options {
	o := render.DefaultOptions()
	if rc == nil {
		return o
	}
	if rc.BorderWidth != nil {
		o.BorderWidth = *rc.BorderWidth
	}
	if rc.BorderRadius != nil {
		o.BorderRadius = *rc.BorderRadius
	}
	if rc.BorderColor != "" {
		o.BorderColor = rc.BorderColor
	}
	if rc.BackgroundColor != "" {
		o.BackgroundColor = rc.BackgroundColor
	}
	if rc.HeaderColor != "" {
		o.HeaderColor = rc.HeaderColor
	}
	if rc.BubbleColor != "" {
		o.BubbleColor = rc.BubbleColor
	}
	if rc.MessageColor != "" {
		o.MessageColor = rc.MessageColor
	}
	if rc.UsernameColor != "" {
		o.UsernameColor = rc.UsernameColor
	}
	if rc.AvatarColor != "" {
		o.AvatarColor = rc.AvatarColor
	}
	return o
}
