package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/starpoller/internal/credstore"
	"github.com/florianilch/starpoller/internal/poller"
)

func validConfig() *Config {
	cfg := &Config{
		Auth: AuthConfig{Username: "alice", Password: "s3cret"},
		Poll: PollConfig{PageID: "143991"},
	}
	_ = cfg.ApplyDefaults()
	return cfg
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.EqualValues(t, "none", cfg.LogExporter)
	assert.Equal(t, "http://sxz.api6.zykj.org", cfg.Upstream.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 1, cfg.Auth.ClientType)
	assert.Equal(t, PasswordSourcePrompt, cfg.Auth.PasswordSource)
	assert.EqualValues(t, 1, cfg.Refresh.MaxAttempts)
	assert.Zero(t, cfg.Poll.MaxConsecutiveRefreshes)
	assert.False(t, cfg.Status.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
}

func TestConfig_PasswordSourceDefaults(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Username: "alice", Password: "s3cret"}}
	require.NoError(t, cfg.ApplyDefaults())
	assert.Equal(t, PasswordSourceStatic, cfg.Auth.PasswordSource)

	cfg = &Config{Auth: AuthConfig{Username: "alice", PasswordSource: PasswordSourceKeyring}}
	require.NoError(t, cfg.ApplyDefaults())
	assert.Equal(t, "starpoller", cfg.Auth.KeyringService)
	assert.Equal(t, "alice", cfg.Auth.KeyringUser)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing username", mutate: func(c *Config) { c.Auth.Username = "" }, wantErr: "Username"},
		{name: "missing page id", mutate: func(c *Config) { c.Poll.PageID = "" }, wantErr: "PageID"},
		{name: "bad base url", mutate: func(c *Config) { c.Upstream.BaseURL = "not a url" }, wantErr: "BaseURL"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LogFormat"},
		{name: "bad password source", mutate: func(c *Config) { c.Auth.PasswordSource = "vault" }, wantErr: "PasswordSource"},
		{name: "static without password", mutate: func(c *Config) { c.Auth.Password = "" }, wantErr: "password required"},
		{
			name: "env without key",
			mutate: func(c *Config) {
				c.Auth.PasswordSource = PasswordSourceEnv
			},
			wantErr: "password_env_key required",
		},
		{
			name: "file without path",
			mutate: func(c *Config) {
				c.Auth.PasswordSource = PasswordSourceFile
			},
			wantErr: "password_file required",
		},
		{
			name:    "negative refresh cap",
			mutate:  func(c *Config) { c.Poll.MaxConsecutiveRefreshes = -1 },
			wantErr: "MaxConsecutiveRefreshes",
		},
		{
			name:   "unparseable interval is not an error",
			mutate: func(c *Config) { c.Poll.Interval = "soon" },
		},
		{
			name:   "unknown mode is not an error",
			mutate: func(c *Config) { c.Poll.Mode = "5" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPollConfig_Target(t *testing.T) {
	target, warnings := PollConfig{PageID: "1", Interval: "750", Mode: "remove"}.Target()
	assert.Empty(t, warnings)
	assert.Equal(t, poller.Target{ResourceID: "1", Action: poller.ActionRemove, Interval: 750 * time.Millisecond}, target)

	target, warnings = PollConfig{PageID: "1", Interval: "abc", Mode: "5"}.Target()
	assert.Len(t, warnings, 2)
	assert.Equal(t, poller.DefaultInterval, target.Interval)
	assert.Equal(t, poller.ActionAdd, target.Action)
}

func TestAuthConfig_NewPasswordStore(t *testing.T) {
	terminal := credstore.NewReaderTerminal(nil, nil)

	tests := []struct {
		source PasswordSource
		auth   AuthConfig
		want   any
	}{
		{source: PasswordSourceStatic, auth: AuthConfig{Password: "x"}, want: &credstore.StaticStore{}},
		{source: PasswordSourceFile, auth: AuthConfig{PasswordFile: "/tmp/pw"}, want: &credstore.FileStore{}},
		{source: PasswordSourceKeyring, auth: AuthConfig{KeyringService: "s", KeyringUser: "u"}, want: &credstore.KeyringStore{}},
		{source: PasswordSourcePrompt, auth: AuthConfig{Username: "alice"}, want: &credstore.PromptStore{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			tt.auth.PasswordSource = tt.source
			store, err := tt.auth.NewPasswordStore(terminal)
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}

	_, err := (&AuthConfig{PasswordSource: "vault"}).NewPasswordStore(terminal)
	assert.Error(t, err)
}
