package config

import "time"

// ApplyDefaults fills in any unspecified configuration fields with
// sensible defaults. Called after unmarshaling a config file, before
// Validate.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}

	for i := range cfg.Channels {
		applyAttributeDefaults(&cfg.Channels[i].Attributes)
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.Types) == 0 {
		cfg.Profiling.Types = []string{"cpu", "alloc_objects", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAttributeDefaults fills the zero-value fields of a channel's
// attribute set from DefaultAttributes. MaxLength, WrapTimeout, and
// ActiveTableSize are the fields most often left unset in a minimal
// config file.
func applyAttributeDefaults(a *Attributes) {
	d := DefaultAttributes()
	if a.MaxLength == 0 {
		a.MaxLength = d.MaxLength
	}
	if a.MaxGapsPerDACS == 0 {
		a.MaxGapsPerDACS = d.MaxGapsPerDACS
	}
	if a.MaxFillsPerDACS == 0 {
		a.MaxFillsPerDACS = d.MaxFillsPerDACS
	}
	if a.WrapTimeout == 0 {
		a.WrapTimeout = d.WrapTimeout
	}
	if a.ActiveTableSize == 0 {
		a.ActiveTableSize = d.ActiveTableSize
	}
}

// DefaultConfig returns a Config with every field set to its default
// value, used when no config file is found.
func DefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{Type: "memory"},
	}
	ApplyDefaults(cfg)
	return cfg
}
