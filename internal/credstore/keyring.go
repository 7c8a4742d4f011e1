package credstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringStore reads the secret from OS-native credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{service: service, user: user}, nil
}

// Read returns the keyring entry for the configured service and user.
func (k *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, err := keyring.Get(k.service, k.user)
	if err != nil {
		return "", fmt.Errorf("keyring entry %s/%s: %w", k.service, k.user, err)
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("keyring entry %s/%s: %w", k.service, k.user, ErrEmpty)
	}
	return v, nil
}
