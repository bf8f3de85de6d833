package config

import "time"

type Config struct {
	DB          string            `mapstructure:"db" yaml:"db"`
	Addr        string            `mapstructure:"addr" yaml:"addr"`
	Workers     int               `mapstructure:"workers" yaml:"workers"`
	Poll        time.Duration     `mapstructure:"poll" yaml:"poll"`
	Lease       time.Duration     `mapstructure:"lease" yaml:"lease"`
	MaxAttempts int               `mapstructure:"max_attempts" yaml:"max_attempts"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`
	Alerts      AlertsConfig      `mapstructure:"alerts" yaml:"alerts"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// MaintenanceConfig holds cron specs for queue housekeeping.
type MaintenanceConfig struct {
	Recover    string        `mapstructure:"recover" yaml:"recover"`
	Purge      string        `mapstructure:"purge" yaml:"purge"`
	PurgeAfter time.Duration `mapstructure:"purge_after" yaml:"purge_after"`
}

type AlertsConfig struct {
	Inbox          bool          `mapstructure:"inbox" yaml:"inbox"`
	Log            bool          `mapstructure:"log" yaml:"log"`
	Webhook        string        `mapstructure:"webhook" yaml:"webhook"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout" yaml:"webhook_timeout"`
	// WebhookHeaders are added to every webhook request, e.g. an Authorization token.
	WebhookHeaders map[string]string `mapstructure:"webhook_headers" yaml:"webhook_headers"`
	Command        []string          `mapstructure:"command" yaml:"command"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

func DefaultConfig() *Config {
	return &Config{
		DB:          "taskmaster.db",
		Addr:        ":8080",
		Workers:     4,
		Poll:        250 * time.Millisecond,
		Lease:       60 * time.Second,
		MaxAttempts: 5,
		Maintenance: MaintenanceConfig{
			Recover:    "@every 30s",
			Purge:      "@hourly",
			PurgeAfter: 7 * 24 * time.Hour,
		},
		Alerts: AlertsConfig{
			Inbox:          true,
			Log:            true,
			WebhookTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}
