// Package config resolves Driggsby's small configuration surface: ledger
// home, log destination/level, and the default analytics date window.
// Resolution order is env binding first (DRIGGSBY_ prefix), then an optional
// config file, then built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const envPrefix = "DRIGGSBY"

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call once at
// application startup, before any Get* function.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("home", "")
	v.SetDefault("log.destination", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("analytics.default_window_days", 90)

	if configDir, err := os.UserConfigDir(); err == nil {
		configPath := filepath.Join(configDir, "driggsby", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			v.SetConfigFile(configPath)
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	return nil
}

func ensureInitialized() {
	if v == nil {
		v = viper.New()
	}
}

// LedgerHome returns the configured ledger home override, or "" if unset, in
// which case the caller falls back to DRIGGSBY_HOME / $HOME/.driggsby.
func LedgerHome() string {
	ensureInitialized()
	return v.GetString("home")
}

// LogDestination returns the configured log file path, or "" for stderr-only
// logging.
func LogDestination() string {
	ensureInitialized()
	return v.GetString("log.destination")
}

// LogLevel returns the configured slog level name (debug/info/warn/error).
func LogLevel() string {
	ensureInitialized()
	return v.GetString("log.level")
}

// LogMaxSizeMB returns the lumberjack rotation size threshold in megabytes.
func LogMaxSizeMB() int {
	ensureInitialized()
	return v.GetInt("log.max_size_mb")
}

// LogMaxBackups returns the number of rotated log files lumberjack retains.
func LogMaxBackups() int {
	ensureInitialized()
	return v.GetInt("log.max_backups")
}

// AnalyticsDefaultWindowDays returns the configured analytics lookback
// window, in days. The recurring and anomaly commands do not read it: with no
// explicit `from` they scan the whole committed history.
func AnalyticsDefaultWindowDays() int {
	ensureInitialized()
	return v.GetInt("analytics.default_window_days")
}
