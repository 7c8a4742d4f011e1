package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/starpoller/internal/credstore"
	"github.com/florianilch/starpoller/internal/observability"
	"github.com/florianilch/starpoller/internal/poller"
	"github.com/florianilch/starpoller/internal/session"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// PasswordSource names where the account password is read from.
type PasswordSource string

const (
	PasswordSourceStatic  PasswordSource = "static"
	PasswordSourceEnv     PasswordSource = "env"
	PasswordSourceFile    PasswordSource = "file"
	PasswordSourceKeyring PasswordSource = "keyring"
	PasswordSourcePrompt  PasswordSource = "prompt"
)

// Default configuration values
const (
	DefaultConfigLogFormat               = LogFormatText
	DefaultConfigLogExporter             = observability.ExporterNone
	DefaultConfigUpstreamBaseURL         = "http://sxz.api6.zykj.org"
	DefaultConfigUpstreamTimeout         = 10 * time.Second
	DefaultConfigKeyringService          = "starpoller"
	DefaultConfigRefreshMaxAttempts      = 1
	DefaultConfigRefreshInitialBackoff   = 500 * time.Millisecond
	DefaultConfigMaxConsecutiveRefreshes = poller.DefaultMaxConsecutiveRefreshes
	DefaultConfigStatusHost              = "127.0.0.1"
	DefaultConfigStatusPort              = 9464
	DefaultConfigShutdownTimeout         = 5 * time.Second
)

// UpstreamConfig describes the remote service.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Timeout bounds every single exchange (login, refresh, poll action).
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// AuthConfig describes the account and where its password comes from.
type AuthConfig struct {
	Username   string `json:"username" validate:"required"`
	ClientType int    `json:"client_type"`

	PasswordSource PasswordSource `json:"password_source" validate:"oneof=static env file keyring prompt"`

	// Source-specific settings (only the one matching PasswordSource is used)
	Password       string `json:"password,omitempty"`
	PasswordFile   string `json:"password_file,omitempty"`
	PasswordEnvKey string `json:"password_env_key,omitempty"`
	KeyringService string `json:"keyring_service,omitempty"`
	KeyringUser    string `json:"keyring_user,omitempty"`
}

// NewPasswordStore creates the credential store selected by PasswordSource.
// terminal is only required for the prompt source.
func (a *AuthConfig) NewPasswordStore(terminal *credstore.Terminal) (credstore.Store, error) {
	switch a.PasswordSource {
	case PasswordSourceStatic:
		return credstore.NewStaticStore(a.Password), nil
	case PasswordSourceEnv:
		return credstore.NewEnvStore(a.PasswordEnvKey)
	case PasswordSourceFile:
		return credstore.NewFileStore(a.PasswordFile)
	case PasswordSourceKeyring:
		return credstore.NewKeyringStore(a.KeyringService, a.KeyringUser)
	case PasswordSourcePrompt:
		return credstore.NewPromptStore(terminal, fmt.Sprintf("Password for %s: ", a.Username))
	default:
		return nil, fmt.Errorf("unsupported password source: %s", a.PasswordSource)
	}
}

// RefreshConfig controls retries of refresh exchanges on transport failure.
type RefreshConfig struct {
	// MaxAttempts of 1 makes the first transport failure fatal.
	MaxAttempts    uint          `json:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `json:"initial_backoff" validate:"gte=0"`
}

// RetryPolicy converts the config into a session.RetryPolicy.
func (r RefreshConfig) RetryPolicy() session.RetryPolicy {
	return session.RetryPolicy{MaxAttempts: r.MaxAttempts, InitialBackoff: r.InitialBackoff}
}

// PollConfig describes the polled page and cadence.
//
// Interval and Mode are kept as raw strings: unusable values fall back to
// defaults with a warning instead of failing validation.
type PollConfig struct {
	PageID   string `json:"page_id" validate:"required"`
	Interval string `json:"interval"`
	Mode     string `json:"mode"`

	// MaxConsecutiveRefreshes of 0 never gives up on refreshing.
	MaxConsecutiveRefreshes int `json:"max_consecutive_refreshes" validate:"gte=0"`
}

// Target resolves the poll target. The returned warnings describe every
// fallback that was applied; they are never fatal.
func (p PollConfig) Target() (poller.Target, []error) {
	var warnings []error

	interval, err := poller.ParseInterval(p.Interval)
	if err != nil {
		warnings = append(warnings, err)
	}
	action, err := poller.ParseAction(p.Mode)
	if err != nil {
		warnings = append(warnings, err)
	}

	return poller.Target{ResourceID: p.PageID, Action: action, Interval: interval}, warnings
}

// StatusConfig holds the optional status server settings.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host" validate:"hostname_rfc1123|ip"`
	Port    uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level             `json:"log_level"`
	LogFormat   LogFormat              `json:"log_format" validate:"oneof=text json"`
	LogExporter observability.Exporter `json:"log_exporter" validate:"oneof=none stdout otlphttp otlpgrpc"`

	Upstream UpstreamConfig `json:"upstream"`
	Auth     AuthConfig     `json:"auth"`
	Refresh  RefreshConfig  `json:"refresh"`
	Poll     PollConfig     `json:"poll"`
	Status   StatusConfig   `json:"status"`
	Shutdown ShutdownConfig `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultConfigUpstreamTimeout
	}
	if c.Auth.ClientType == 0 {
		c.Auth.ClientType = session.DefaultClientType
	}
	if c.Refresh.MaxAttempts == 0 {
		c.Refresh.MaxAttempts = DefaultConfigRefreshMaxAttempts
	}
	if c.Refresh.InitialBackoff == 0 {
		c.Refresh.InitialBackoff = DefaultConfigRefreshInitialBackoff
	}
	if c.Status.Host == "" {
		c.Status.Host = DefaultConfigStatusHost
	}
	if c.Status.Port == 0 {
		c.Status.Port = DefaultConfigStatusPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	// A configured password wins; otherwise ask for it.
	if c.Auth.PasswordSource == "" {
		if c.Auth.Password != "" {
			c.Auth.PasswordSource = PasswordSourceStatic
		} else {
			c.Auth.PasswordSource = PasswordSourcePrompt
		}
	}

	// Dynamic defaults based on password source
	if c.Auth.PasswordSource == PasswordSourceKeyring {
		if c.Auth.KeyringService == "" {
			c.Auth.KeyringService = DefaultConfigKeyringService
		}
		if c.Auth.KeyringUser == "" {
			c.Auth.KeyringUser = c.Auth.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.PasswordSource {
	case PasswordSourceStatic:
		if c.Auth.Password == "" {
			return errors.New("password required for static password source")
		}
	case PasswordSourceEnv:
		if c.Auth.PasswordEnvKey == "" {
			return errors.New("password_env_key required for env password source")
		}
	case PasswordSourceFile:
		if c.Auth.PasswordFile == "" {
			return errors.New("password_file required for file password source")
		}
	case PasswordSourceKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring password source")
		}
	}

	return nil
}
