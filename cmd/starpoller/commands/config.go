package commands

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/starpoller/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., STARPOLLER_POLL__PAGE_ID → poll.page_id)
const envPrefix = "STARPOLLER_"

// LinePrompter asks the user for a single line of input.
type LinePrompter interface {
	ReadLine(prompt string) (string, error)
}

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables (including the .env file) → CLI flags →
// interactive prompts for missing values → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string, prompter LinePrompter) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// 4. Ask for whatever is still missing
	if prompter != nil {
		if err := promptMissing(config, prompter); err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// promptMissing fills the account and page from the terminal. Interval and
// mode are only asked for together with the page; an empty answer keeps the
// default.
func promptMissing(cfg *app.Config, prompter LinePrompter) error {
	var err error

	if cfg.Auth.Username == "" {
		if cfg.Auth.Username, err = prompter.ReadLine("Username: "); err != nil {
			return err
		}
	}

	if cfg.Poll.PageID != "" {
		return nil
	}
	if cfg.Poll.PageID, err = prompter.ReadLine("Page ID (hint: 143991): "); err != nil {
		return err
	}
	if cfg.Poll.Interval == "" {
		if cfg.Poll.Interval, err = prompter.ReadLine("Interval in ms (default: 200): "); err != nil {
			return err
		}
	}
	if cfg.Poll.Mode == "" {
		if cfg.Poll.Mode, err = prompter.ReadLine("Mode (0: add (default), 1: remove): "); err != nil {
			return err
		}
	}
	return nil
}

// environWithDotenv returns an environ func that layers the process
// environment over the variables in envFile. Variables already set in the
// process win, matching godotenv.Load.
func environWithDotenv(envFile string, environ func() []string) (func() []string, error) {
	if envFile == "" {
		return environ, nil
	}

	fromFile, err := godotenv.Read(envFile)
	if err != nil {
		return nil, err
	}

	return func() []string {
		current := environ()
		set := make(map[string]struct{}, len(current))
		for _, kv := range current {
			key, _, _ := strings.Cut(kv, "=")
			set[key] = struct{}{}
		}

		merged := make([]string, 0, len(current)+len(fromFile))
		for key, value := range fromFile {
			if _, ok := set[key]; !ok {
				merged = append(merged, key+"="+value)
			}
		}
		return append(merged, current...)
	}, nil
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --poll--page-id → poll.page_id, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
