package poller

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Action is the operation repeated on every iteration.
type Action int

const (
	ActionAdd Action = iota
	ActionRemove
)

// DefaultInterval is used when no usable interval is configured.
const DefaultInterval = 200 * time.Millisecond

var (
	// ErrInvalidAction is reported alongside the ActionAdd fallback.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidInterval is reported alongside the DefaultInterval fallback.
	ErrInvalidInterval = errors.New("invalid interval")
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "action(" + strconv.Itoa(int(a)) + ")"
	}
}

// title is used in console output ("Add star success").
func (a Action) title() string {
	switch a {
	case ActionRemove:
		return "Remove"
	default:
		return "Add"
	}
}

// ParseAction accepts "0"/"add" and "1"/"remove" (case-insensitive).
// An empty value selects ActionAdd. Anything else also selects ActionAdd and
// returns an error wrapping ErrInvalidAction so the caller can warn.
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "add":
		return ActionAdd, nil
	case "1", "remove":
		return ActionRemove, nil
	default:
		return ActionAdd, fmt.Errorf("%w %q, using %s", ErrInvalidAction, raw, ActionAdd)
	}
}

// maxIntervalMillis is the largest interval a time.Duration can hold.
const maxIntervalMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

// ParseInterval reads a positive whole number of milliseconds.
// An empty value selects DefaultInterval. Non-numeric or non-positive values
// also select DefaultInterval and return an error wrapping ErrInvalidInterval.
func ParseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultInterval, nil
	}

	ms, err := strconv.ParseUint(raw, 10, 63)
	if err != nil || ms == 0 || ms > maxIntervalMillis {
		return DefaultInterval, fmt.Errorf("%w %q, using %d", ErrInvalidInterval, raw, DefaultInterval.Milliseconds())
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Target is the immutable configuration of a loop.
type Target struct {
	ResourceID string
	Action     Action
	Interval   time.Duration
}
