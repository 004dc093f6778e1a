package am

import (
	"time"

	"github.com/teranos/punchclock/errors"
)

// Config represents the punchclock configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Sync     SyncConfig     `mapstructure:"sync" toml:"sync" yaml:"sync" json:"sync"`
	Server   ServerConfig   `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
	Log      LogConfig      `mapstructure:"log" toml:"log" yaml:"log" json:"log"`
}

// DatabaseConfig configures the local SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// SyncConfig configures the connection to the remote authority and the
// cadence of background sync triggers
type SyncConfig struct {
	RemoteURL string `mapstructure:"remote_url" toml:"remote_url" yaml:"remote_url" json:"remote_url"` // e.g. "https://punchclock.example.com"; empty = offline only
	Token     string `mapstructure:"token" toml:"token" yaml:"token" json:"token"`                     // bearer token issued by `punchclock token issue`
	UserID    string `mapstructure:"user_id" toml:"user_id" yaml:"user_id" json:"user_id"`             // authenticated user; empty disables all triggers
	Timezone  string `mapstructure:"timezone" toml:"timezone" yaml:"timezone" json:"timezone"`         // IANA zone for pay period and week boundaries (empty = Local)

	ProbeIntervalSeconds      int  `mapstructure:"probe_interval_seconds" toml:"probe_interval_seconds" yaml:"probe_interval_seconds" json:"probe_interval_seconds"`                     // connectivity probe cadence
	ActiveIntervalSeconds     int  `mapstructure:"active_interval_seconds" toml:"active_interval_seconds" yaml:"active_interval_seconds" json:"active_interval_seconds"`                 // foreground timer cadence (gated to 5m)
	BackgroundIntervalSeconds int  `mapstructure:"background_interval_seconds" toml:"background_interval_seconds" yaml:"background_interval_seconds" json:"background_interval_seconds"` // slow timer cadence (gated to 2h)
	RequestTimeoutSeconds     int  `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds" yaml:"request_timeout_seconds" json:"request_timeout_seconds"`                 // per remote call
	Realtime                  bool `mapstructure:"realtime" toml:"realtime" yaml:"realtime" json:"realtime"`                                                                             // subscribe to the remote change feed
}

// ServerConfig configures the reference remote authority (`punchclock serve`)
type ServerConfig struct {
	Port         int    `mapstructure:"port" toml:"port" yaml:"port" json:"port"`
	DatabasePath string `mapstructure:"database_path" toml:"database_path" yaml:"database_path" json:"database_path"`
	JWTSecret    string `mapstructure:"jwt_secret" toml:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret"`         // empty = generated per process (tokens die on restart)
	TokenExpiry  string `mapstructure:"token_expiry" toml:"token_expiry" yaml:"token_expiry" json:"token_expiry"` // Go duration, e.g. "720h"

	// Browser origins allowed to open /ws/changes; clients without an
	// Origin header are always allowed
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" yaml:"json" json:"json"`
}

// Location resolves the configured sync timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Sync.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sync.timezone %q", c.Sync.Timezone)
	}
	return loc, nil
}

// Interval converts a seconds setting to a duration, falling back when unset
func Interval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Server port constants
const (
	DefaultServerPort = 8787
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
