package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			IdleDetectionSeconds: 60,
			FocusPollSeconds:     10,
			CreditOnSwitch:       false,
			IgnoreDomains:        []string{},
		},
		Retention: RetentionConfig{
			Days: 365,
		},
		Storage: StorageConfig{
			Path:              "~/.config/domaintime",
			SQLiteFile:        "domaintime.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			AuthToken:      "",
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}
