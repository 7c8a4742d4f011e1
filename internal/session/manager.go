package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/florianilch/starpoller/internal/metrics"
)

// Exchanger performs the raw exchanges with the authority.
type Exchanger interface {
	Login(ctx context.Context, creds Credentials) (TokenPair, error)
	Refresh(ctx context.Context, current TokenPair) (TokenPair, error)
}

// RetryPolicy controls retries of refresh exchanges that fail with ErrTransport.
// Rejections are never retried. MaxAttempts of 1 disables retries.
type RetryPolicy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
}

// DefaultRetryPolicy treats the first transport failure as final.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1, InitialBackoff: 500 * time.Millisecond}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRetryPolicy sets the retry policy for refresh exchanges.
func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(m *Manager) {
		m.retry = p
	}
}

// Manager owns the current TokenPair.
// Replacement is a single atomic swap, so concurrent readers never see a mixed pair.
type Manager struct {
	exchanger Exchanger
	retry     RetryPolicy

	current atomic.Pointer[TokenPair]
}

// Compile-time check to ensure Manager implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Manager)(nil)

// NewManager creates a Manager without a session. Call Login before use.
func NewManager(exchanger Exchanger, opts ...ManagerOption) (*Manager, error) {
	if exchanger == nil {
		return nil, fmt.Errorf("missing exchanger")
	}

	m := &Manager{
		exchanger: exchanger,
		retry:     DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.retry.MaxAttempts == 0 {
		m.retry.MaxAttempts = 1
	}

	return m, nil
}

// Login performs the initial exchange and installs the resulting pair.
func (m *Manager) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	pair, err := m.exchanger.Login(ctx, creds)
	if err != nil {
		return TokenPair{}, err
	}

	m.current.Store(&pair)
	slog.InfoContext(ctx, "logged in", "user", creds.Username, "access_expiry", pair.AccessExpiry)
	return pair, nil
}

// Refresh exchanges the current pair for a new one and swaps it in.
// On failure the current pair is left untouched.
func (m *Manager) Refresh(ctx context.Context) (TokenPair, error) {
	current := m.current.Load()
	if current == nil {
		return TokenPair{}, ErrNoSession
	}
	presented := *current

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retry.InitialBackoff

	next, err := backoff.Retry(ctx, func() (TokenPair, error) {
		pair, err := m.exchanger.Refresh(ctx, presented)
		if err != nil && !errors.Is(err, ErrTransport) {
			return TokenPair{}, backoff.Permanent(err)
		}
		return pair, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.retry.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.WarnContext(ctx, "token refresh failed, retrying", "error", err, "backoff", wait)
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		result := "transport"
		if errors.Is(err, ErrRefreshRejected) {
			result = "rejected"
		}
		metrics.TokenRefreshes.WithLabelValues(result).Inc()
		return TokenPair{}, err
	}

	m.current.Store(&next)
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "token refreshed", "access_expiry", next.AccessExpiry)
	return next, nil
}

// Current returns the current pair and whether a session exists.
func (m *Manager) Current() (TokenPair, bool) {
	p := m.current.Load()
	if p == nil {
		return TokenPair{}, false
	}
	return *p, true
}

// Token returns the current access token as an oauth2 bearer token.
// No refresh is attempted here; expiry is detected from server responses.
func (m *Manager) Token() (*oauth2.Token, error) {
	p := m.current.Load()
	if p == nil {
		return nil, ErrNoSession
	}
	return p.OAuth2(), nil
}
