// Package config loads and validates the billable configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18791,
			Bind: "loopback",
		},
		Tracker: TrackerConfig{
			IdleSeconds:       5,
			AbandonAfterHours: 24,
			SweepMinutes:      10,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Summary: SummaryConfig{
			Provider: "template",
			Model:    "claude-sonnet-4-20250514",
		},
		Billing: BillingConfig{
			HourlyRate:     250,
			StepTimeoutSec: 15,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
