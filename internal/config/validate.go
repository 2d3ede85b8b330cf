package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Tracker.IdleSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "tracker.idleSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Tracker.IdleSeconds),
		})
	}
	if cfg.Tracker.AbandonAfterHours < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "tracker.abandonAfterHours",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Tracker.AbandonAfterHours),
		})
	}

	validDrivers := []string{"sqlite", "memory"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "store.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDrivers, cfg.Store.Driver),
		})
	}

	validProviders := []string{"anthropic", "template"}
	if cfg.Summary.Provider != "" && !slices.Contains(validProviders, cfg.Summary.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "summary.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Summary.Provider),
		})
	}
	if cfg.Summary.Provider == "anthropic" && cfg.Summary.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "summary.apiKey",
			Message: "required when summary.provider is anthropic",
		})
	}

	if cfg.Billing.HourlyRate < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "billing.hourlyRate",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.Billing.HourlyRate),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	if cfg.Notify.IRC != nil {
		irc := cfg.Notify.IRC
		if irc.Server == "" {
			issues = append(issues, ValidationIssue{Path: "notify.irc.server", Message: "server is required"})
		}
		if irc.Nick == "" {
			issues = append(issues, ValidationIssue{Path: "notify.irc.nick", Message: "nick is required"})
		}
		if irc.Channel == "" {
			issues = append(issues, ValidationIssue{Path: "notify.irc.channel", Message: "channel is required"})
		}
		if irc.Port < 0 || irc.Port > 65535 {
			issues = append(issues, ValidationIssue{
				Path:    "notify.irc.port",
				Message: fmt.Sprintf("port must be 0-65535, got %d", irc.Port),
			})
		}
	}

	if cfg.Mail.IMAP != nil {
		imap := cfg.Mail.IMAP
		if imap.Host == "" {
			issues = append(issues, ValidationIssue{Path: "mail.imap.host", Message: "host is required"})
		}
		if imap.Username == "" {
			issues = append(issues, ValidationIssue{Path: "mail.imap.username", Message: "username is required"})
		}
	}

	return issues
}
