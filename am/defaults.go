package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "punchclock.db")

	// Sync defaults
	v.SetDefault("sync.remote_url", "")
	v.SetDefault("sync.token", "")
	v.SetDefault("sync.user_id", "")
	v.SetDefault("sync.timezone", "")
	v.SetDefault("sync.probe_interval_seconds", 15)
	v.SetDefault("sync.active_interval_seconds", 60)
	v.SetDefault("sync.background_interval_seconds", 900)
	v.SetDefault("sync.request_timeout_seconds", 20)
	v.SetDefault("sync.realtime", true)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.database_path", "punchclock-remote.db")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_expiry", "720h")
	v.SetDefault("server.allowed_origins", []string{"http://localhost", "https://localhost"})

	// Log defaults
	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars binds secrets to explicit environment variables so
// they never need to live in a config file
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("sync.token", "PUNCHCLOCK_TOKEN")
	v.BindEnv("server.jwt_secret", "PUNCHCLOCK_JWT_SECRET")
}
