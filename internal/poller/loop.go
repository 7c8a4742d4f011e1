package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/florianilch/starpoller/internal/metrics"
	"github.com/florianilch/starpoller/internal/session"
)

// DefaultMaxConsecutiveRefreshes leaves refreshes without an intervening
// success unbounded. Any positive value turns the cap on.
const DefaultMaxConsecutiveRefreshes = 0

var (
	// ErrUnexpected marks a star response that is neither confirmed nor unauthorized.
	ErrUnexpected = errors.New("unexpected poll response")

	// ErrRefreshLoop is returned when fresh tokens keep being refused.
	ErrRefreshLoop = errors.New("session keeps expiring after refresh")
)

// UnexpectedResponseError carries the status of a fatal star response.
type UnexpectedResponseError struct {
	Action     Action
	StatusCode int
	Detail     string
}

func (e *UnexpectedResponseError) Error() string {
	msg := fmt.Sprintf("%s star: %s: status %d", e.Action, ErrUnexpected, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *UnexpectedResponseError) Unwrap() error { return ErrUnexpected }

// Starrer issues one star request with the current access token.
type Starrer interface {
	Star(ctx context.Context, action Action, resourceID string) (Response, error)
}

// Refresher replaces the current token pair.
type Refresher interface {
	Refresh(ctx context.Context) (session.TokenPair, error)
}

// Outcome is the classification of a single attempt.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeUnauthorized
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "fatal"
	}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithClock sets the clock used for interval waits.
func WithClock(clock clockwork.Clock) LoopOption {
	return func(l *Loop) {
		l.clock = clock
	}
}

// WithReporter sets where successes and recovery notices are reported.
func WithReporter(r Reporter) LoopOption {
	return func(l *Loop) {
		l.reporter = r
	}
}

// WithMaxConsecutiveRefreshes caps refreshes without an intervening success.
// Zero means no cap.
func WithMaxConsecutiveRefreshes(n int) LoopOption {
	return func(l *Loop) {
		l.maxConsecutiveRefreshes = n
	}
}

// Loop repeats the target action until a fatal error or cancellation.
// Attempts are strictly sequential.
type Loop struct {
	target    Target
	starrer   Starrer
	refresher Refresher
	reporter  Reporter
	clock     clockwork.Clock

	maxConsecutiveRefreshes int

	successes atomic.Int64
}

// NewLoop creates a Loop for target.
func NewLoop(target Target, starrer Starrer, refresher Refresher, opts ...LoopOption) (*Loop, error) {
	if starrer == nil {
		return nil, fmt.Errorf("missing starrer")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}
	if target.ResourceID == "" {
		return nil, fmt.Errorf("missing resource id")
	}
	if target.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", target.Interval)
	}

	l := &Loop{
		target:                  target,
		starrer:                 starrer,
		refresher:               refresher,
		reporter:                NopReporter{},
		clock:                   clockwork.NewRealClock(),
		maxConsecutiveRefreshes: DefaultMaxConsecutiveRefreshes,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxConsecutiveRefreshes < 0 {
		return nil, fmt.Errorf("max consecutive refreshes cannot be negative, got %d", l.maxConsecutiveRefreshes)
	}

	return l, nil
}

// Target returns the loop's configuration.
func (l *Loop) Target() Target {
	return l.target
}

// Successes returns the number of confirmed attempts so far. Safe for concurrent use.
func (l *Loop) Successes() int64 {
	return l.successes.Load()
}

// Run blocks until ctx is cancelled (returns nil) or a fatal error occurs.
//
// An unauthorized attempt triggers a refresh followed by an immediate retry;
// it neither counts as a success nor consumes an interval wait.
func (l *Loop) Run(ctx context.Context) error {
	refreshes := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		outcome, err := l.attempt(ctx)
		metrics.Attempts.WithLabelValues(l.target.Action.String(), outcome.String()).Inc()

		switch outcome {
		case OutcomeSucceeded:
			refreshes = 0
			n := l.successes.Add(1)
			metrics.Successes.Set(float64(n))
			l.reporter.Succeeded(l.target.Action, n)
			slog.DebugContext(ctx, "star confirmed", "action", l.target.Action, "successes", n)

		case OutcomeUnauthorized:
			if l.maxConsecutiveRefreshes > 0 && refreshes >= l.maxConsecutiveRefreshes {
				return fmt.Errorf("%w: %d refreshes without a confirmed attempt", ErrRefreshLoop, refreshes)
			}
			refreshes++

			l.reporter.Refreshing()
			slog.InfoContext(ctx, "access token expired, refreshing", "consecutive", refreshes)
			if _, err := l.refresher.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("refreshing session: %w", err)
			}
			continue

		default:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.target.Interval):
		}
	}
}

// attempt issues one request and classifies the answer.
func (l *Loop) attempt(ctx context.Context) (Outcome, error) {
	resp, err := l.starrer.Star(ctx, l.target.Action, l.target.ResourceID)
	if err != nil {
		return OutcomeFatal, fmt.Errorf("%s star: %w: %w", l.target.Action, session.ErrTransport, err)
	}

	switch resp.Status {
	case StatusConfirmed:
		return OutcomeSucceeded, nil
	case StatusUnauthorized:
		return OutcomeUnauthorized, nil
	default:
		return OutcomeFatal, &UnexpectedResponseError{
			Action:     l.target.Action,
			StatusCode: resp.StatusCode,
			Detail:     resp.Detail,
		}
	}
}
