package am

import (
	"net/url"
	"time"

	"github.com/teranos/punchclock/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}

	if c.Sync.RemoteURL != "" {
		u, err := url.Parse(c.Sync.RemoteURL)
		if err != nil {
			return errors.Wrapf(err, "sync.remote_url %q is not a URL", c.Sync.RemoteURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf("sync.remote_url must use http or https, got %q", u.Scheme)
		}
	}

	// Intervals: 0 = use built-in default, negative = invalid
	if c.Sync.ProbeIntervalSeconds < 0 {
		return errors.Newf("sync.probe_interval_seconds must be >= 0, got %d", c.Sync.ProbeIntervalSeconds)
	}
	if c.Sync.ActiveIntervalSeconds < 0 {
		return errors.Newf("sync.active_interval_seconds must be >= 0, got %d", c.Sync.ActiveIntervalSeconds)
	}
	if c.Sync.BackgroundIntervalSeconds < 0 {
		return errors.Newf("sync.background_interval_seconds must be >= 0, got %d", c.Sync.BackgroundIntervalSeconds)
	}
	if c.Sync.RequestTimeoutSeconds < 0 {
		return errors.Newf("sync.request_timeout_seconds must be >= 0, got %d", c.Sync.RequestTimeoutSeconds)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Server.TokenExpiry != "" {
		if _, err := time.ParseDuration(c.Server.TokenExpiry); err != nil {
			return errors.Wrapf(err, "server.token_expiry %q is not a duration", c.Server.TokenExpiry)
		}
	}

	return nil
}
