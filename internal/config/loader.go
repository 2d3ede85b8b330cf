package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.AuthToken = expandEnvVars(cfg.Gateway.AuthToken)
	cfg.Summary.APIKey = expandEnvVars(cfg.Summary.APIKey)
	cfg.Practice.AccessToken = expandEnvVars(cfg.Practice.AccessToken)
	if cfg.Notify.IRC != nil {
		cfg.Notify.IRC.Password = expandEnvVars(cfg.Notify.IRC.Password)
	}
	if cfg.Mail.IMAP != nil {
		cfg.Mail.IMAP.Password = expandEnvVars(cfg.Mail.IMAP.Password)
	}
	if cfg.Mail.Gmail != nil {
		cfg.Mail.Gmail.AccessToken = expandEnvVars(cfg.Mail.Gmail.AccessToken)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18791
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Tracker.IdleSeconds == 0 {
		cfg.Tracker.IdleSeconds = 5
	}
	if cfg.Tracker.AbandonAfterHours == 0 {
		cfg.Tracker.AbandonAfterHours = 24
	}
	if cfg.Tracker.SweepMinutes == 0 {
		cfg.Tracker.SweepMinutes = 10
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Summary.Provider == "" {
		cfg.Summary.Provider = "template"
	}
	if cfg.Summary.Model == "" {
		cfg.Summary.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Billing.HourlyRate == 0 {
		cfg.Billing.HourlyRate = 250
	}
	if cfg.Billing.StepTimeoutSec == 0 {
		cfg.Billing.StepTimeoutSec = 15
	}
	if cfg.Mail.PollSeconds == 0 {
		cfg.Mail.PollSeconds = 30
	}
	if cfg.Mail.IMAP != nil && cfg.Mail.IMAP.Mailbox == "" {
		cfg.Mail.IMAP.Mailbox = "Drafts"
	}
	if cfg.Mail.IMAP != nil && cfg.Mail.IMAP.Port == 0 {
		cfg.Mail.IMAP.Port = 993
	}
	if cfg.Notify.IRC != nil && cfg.Notify.IRC.Port == 0 {
		cfg.Notify.IRC.Port = 6667
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads BILLABLE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BILLABLE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("BILLABLE_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("BILLABLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BILLABLE_IDLE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Tracker.IdleSeconds = n
		}
	}
}
