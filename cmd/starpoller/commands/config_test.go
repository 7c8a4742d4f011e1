package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/starpoller/internal/app"
)

type scriptedPrompter struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompter) ReadLine(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func environ(kv ...string) func() []string {
	return func() []string { return kv }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeFile(t, "starpoller.toml", `
log_level = "debug"

[auth]
username = "alice"
password = "from-file"

[poll]
page_id = "143991"
interval = 500
mode = 1

[upstream]
timeout = "3s"
`)

	cfg, err := loadConfig(path, nil, environ(
		"STARPOLLER_AUTH__PASSWORD=from-env",
		"STARPOLLER_STATUS__ENABLED=true",
		"OTHER_VAR=ignored",
	), nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Auth.Username)
	assert.Equal(t, "from-env", cfg.Auth.Password)
	assert.Equal(t, app.PasswordSourceStatic, cfg.Auth.PasswordSource)
	assert.Equal(t, "143991", cfg.Poll.PageID)
	assert.Equal(t, "500", cfg.Poll.Interval)
	assert.Equal(t, "1", cfg.Poll.Mode)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "DEBUG", cfg.LogLevel.String())
	assert.True(t, cfg.Status.Enabled)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	var got *app.Config
	cmd := &cli.Command{
		Name:     "starpoller",
		Flags:    []cli.Flag{&cli.StringFlag{Name: "log-level"}},
		Commands: []*cli.Command{runCommand()},
	}
	cmd.Commands[0].Action = func(ctx context.Context, c *cli.Command) error {
		var err error
		got, err = loadConfig("", c, environ(
			"STARPOLLER_AUTH__USERNAME=alice",
			"STARPOLLER_AUTH__PASSWORD=s3cret",
			"STARPOLLER_POLL__PAGE_ID=1",
		), nil)
		return err
	}

	err := cmd.Run(context.Background(), []string{
		"starpoller", "--log-level", "warn",
		"run", "--poll--page-id", "2", "--poll--mode", "remove", "--status--port", "8080",
	})
	require.NoError(t, err)

	assert.Equal(t, "2", got.Poll.PageID)
	assert.Equal(t, "remove", got.Poll.Mode)
	assert.EqualValues(t, 8080, got.Status.Port)
	assert.Equal(t, "WARN", got.LogLevel.String())
	// Unset flags keep their defaults out of the way.
	assert.Equal(t, app.DefaultConfigUpstreamBaseURL, got.Upstream.BaseURL)
	assert.Empty(t, got.Poll.Interval)
}

func TestLoadConfig_PromptsForMissingValues(t *testing.T) {
	prompter := &scriptedPrompter{answers: []string{"alice", "143991", "", "1"}}

	cfg, err := loadConfig("", nil, environ("STARPOLLER_AUTH__PASSWORD=s3cret"), prompter)
	require.NoError(t, err)

	assert.Len(t, prompter.asked, 4)
	assert.Equal(t, "alice", cfg.Auth.Username)
	assert.Equal(t, "143991", cfg.Poll.PageID)
	assert.Empty(t, cfg.Poll.Interval)
	assert.Equal(t, "1", cfg.Poll.Mode)
}

func TestLoadConfig_NoPromptWhenConfigured(t *testing.T) {
	prompter := &scriptedPrompter{}

	_, err := loadConfig("", nil, environ(
		"STARPOLLER_AUTH__USERNAME=alice",
		"STARPOLLER_AUTH__PASSWORD=s3cret",
		"STARPOLLER_POLL__PAGE_ID=1",
	), prompter)
	require.NoError(t, err)
	assert.Empty(t, prompter.asked)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, environ(), nil)
	assert.ErrorContains(t, err, "loading config file")

	_, err = loadConfig("", nil, environ("STARPOLLER_AUTH__USERNAME=alice"), nil)
	assert.ErrorContains(t, err, "invalid config")

	_, err = loadConfig("", nil, environ(), &scriptedPrompter{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestEnvironWithDotenv(t *testing.T) {
	path := writeFile(t, ".env", "STARPOLLER_POLL__PAGE_ID=from-dotenv\nSTARPOLLER_AUTH__USERNAME=dotenv-user\n")

	environFunc, err := environWithDotenv(path, environ("STARPOLLER_AUTH__USERNAME=process-user"))
	require.NoError(t, err)

	got := environFunc()
	assert.Contains(t, got, "STARPOLLER_POLL__PAGE_ID=from-dotenv")
	assert.Contains(t, got, "STARPOLLER_AUTH__USERNAME=process-user")
	assert.NotContains(t, got, "STARPOLLER_AUTH__USERNAME=dotenv-user")

	_, err = environWithDotenv(filepath.Join(t.TempDir(), "nope.env"), environ())
	assert.Error(t, err)

	passthrough, err := environWithDotenv("", environ("A=1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1"}, passthrough())
}
