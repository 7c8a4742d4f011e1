package credstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads the secret from an environment variable.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	return newEnvStore(envKey, os.LookupEnv)
}

func newEnvStore(envKey string, lookup func(string) (string, bool)) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}
	if _, exists := lookup(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{envKey: envKey, lookup: lookup}, nil
}

// Read returns the value of the environment variable at call time.
func (e *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, _ := e.lookup(e.envKey)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("environment variable %s: %w", e.envKey, ErrEmpty)
	}
	return v, nil
}
