package credstore

import (
	"context"
	"fmt"
	"strings"
)

// StaticStore returns a fixed value, usually taken from a config file or flag.
type StaticStore struct {
	value string
}

var _ Store = (*StaticStore)(nil)

func NewStaticStore(value string) *StaticStore {
	return &StaticStore{value: value}
}

func (s *StaticStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v := strings.TrimSpace(s.value)
	if v == "" {
		return "", fmt.Errorf("static password: %w", ErrEmpty)
	}
	return v, nil
}
