package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every terminal runs one agent; the back office URL and device id are the
// only values without a workable production default.
type Config struct {
	// Local UI API
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Back office
	BackendURL            string `mapstructure:"BACKEND_URL"`
	BackendTimeoutSeconds int    `mapstructure:"BACKEND_TIMEOUT_SECONDS"`

	// Identity of this terminal — stamped on every outbox entry so the
	// server can attribute idempotency keys to a device.
	DeviceID string `mapstructure:"DEVICE_ID"`

	// Durable store
	DataPath string `mapstructure:"DATA_PATH"`

	// Connectivity probe
	ProbeTimeoutSeconds int `mapstructure:"PROBE_TIMEOUT_SECONDS"`

	// Sync
	SyncIntervalSeconds int `mapstructure:"SYNC_INTERVAL_SECONDS"`
	SyncAlertAttempts   int `mapstructure:"SYNC_ALERT_ATTEMPTS"`

	// Registry close: closing notes become mandatory when the absolute
	// variance exceeds this many currency units.
	VarianceNotesThreshold string `mapstructure:"VARIANCE_NOTES_THRESHOLD"`

	// SMTP — supervisor alerts. Leaving SMTP_HOST empty disables mail.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	AlertEmail   string `mapstructure:"ALERT_EMAIL"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("PORT", 7070)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("BACKEND_URL", "http://localhost:8000")
	viper.SetDefault("BACKEND_TIMEOUT_SECONDS", 15)
	viper.SetDefault("DEVICE_ID", "till-dev")
	viper.SetDefault("DATA_PATH", "tillagent.db")
	viper.SetDefault("PROBE_TIMEOUT_SECONDS", 3)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	viper.SetDefault("SYNC_ALERT_ATTEMPTS", 8)
	viper.SetDefault("VARIANCE_NOTES_THRESHOLD", "1000")
	viper.SetDefault("SMTP_PORT", 587)

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
