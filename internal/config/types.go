package config

// Config is the root configuration for billable.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Tracker  TrackerConfig  `yaml:"tracker,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Summary  SummaryConfig  `yaml:"summary,omitempty"`
	Practice PracticeConfig `yaml:"practice,omitempty"`
	Billing  BillingConfig  `yaml:"billing,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Mail     MailConfig     `yaml:"mail,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket API server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AuthToken      string   `yaml:"authToken,omitempty"` // supports ${ENV_VAR}
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// TrackerConfig controls session state-machine timing.
type TrackerConfig struct {
	IdleSeconds       int `yaml:"idleSeconds,omitempty"`       // inactivity deadline before auto-pause
	AbandonAfterHours int `yaml:"abandonAfterHours,omitempty"` // retention threshold for the sweep
	SweepMinutes      int `yaml:"sweepMinutes,omitempty"`      // sweep interval
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // sqlite file, defaults under the data dir
}

// SummaryConfig selects the billing-summary generator.
type SummaryConfig struct {
	Provider string `yaml:"provider,omitempty"` // "anthropic" | "template"
	APIKey   string `yaml:"apiKey,omitempty"`   // supports ${ENV_VAR}
	Model    string `yaml:"model,omitempty"`
}

// PracticeConfig configures the practice-management (Clio) integration.
// An empty AccessToken means "not configured": the orchestrator then
// synthesizes placeholder records instead of calling out.
type PracticeConfig struct {
	BaseURL     string `yaml:"baseUrl,omitempty"`
	AccessToken string `yaml:"accessToken,omitempty"` // supports ${ENV_VAR}
}

// BillingConfig controls billing computation.
type BillingConfig struct {
	HourlyRate     float64 `yaml:"hourlyRate,omitempty"`
	StepTimeoutSec int     `yaml:"stepTimeoutSec,omitempty"` // per external call in the workflow
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines the optional IRC notification sink.
type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port,omitempty"`
	Nick     string `yaml:"nick"`
	Password string `yaml:"password,omitempty"` // supports ${ENV_VAR}
	Channel  string `yaml:"channel"`
	UseTLS   bool   `yaml:"useTLS,omitempty"`
}

// MailConfig configures draft watching.
type MailConfig struct {
	PollSeconds int          `yaml:"pollSeconds,omitempty"`
	IMAP        *IMAPConfig  `yaml:"imap,omitempty"`
	Gmail       *GmailConfig `yaml:"gmail,omitempty"`
}

// IMAPConfig defines an IMAP drafts source.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"` // supports ${ENV_VAR}
	Mailbox  string `yaml:"mailbox,omitempty"`  // defaults to "Drafts"
}

// GmailConfig defines a Gmail drafts source. The token is expected to be
// provisioned by the surrounding product's OAuth flow.
type GmailConfig struct {
	AccessToken string `yaml:"accessToken,omitempty"` // supports ${ENV_VAR}
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}
