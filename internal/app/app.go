package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/starpoller/internal/credstore"
	"github.com/florianilch/starpoller/internal/poller"
	"github.com/florianilch/starpoller/internal/session"
	"github.com/florianilch/starpoller/internal/statusserver"
)

// App orchestrates login, the poll loop and the optional status server.
type App struct {
	cfg      *Config
	password credstore.Store
	manager  *session.Manager
	loop     *poller.Loop
	status   *statusserver.Server
}

// Option configures an App.
type Option func(*options)

type options struct {
	terminal *credstore.Terminal
	reporter poller.Reporter
}

// WithTerminal sets the terminal used by the prompt password source.
func WithTerminal(t *credstore.Terminal) Option {
	return func(o *options) { o.terminal = t }
}

// WithReporter overrides where success lines are printed. Defaults to stdout.
func WithReporter(r poller.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// New creates a new App instance. No network I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{reporter: poller.NewConsoleReporter(os.Stdout)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.terminal == nil {
		o.terminal = credstore.NewTerminal(os.Stdin, os.Stderr)
	}

	password, err := cfg.Auth.NewPasswordStore(o.terminal)
	if err != nil {
		return nil, fmt.Errorf("failed to create password store: %w", err)
	}

	authClient, err := session.NewClient(cfg.Upstream.BaseURL,
		session.WithTimeout(cfg.Upstream.Timeout),
		session.WithClientType(cfg.Auth.ClientType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	manager, err := session.NewManager(authClient, session.WithRetryPolicy(cfg.Refresh.RetryPolicy()))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	starClient, err := poller.NewStarClient(cfg.Upstream.BaseURL, manager, poller.WithTimeout(cfg.Upstream.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create star client: %w", err)
	}

	target, warnings := cfg.Poll.Target()
	for _, w := range warnings {
		slog.Warn("using fallback poll setting", "error", w)
	}

	loop, err := poller.NewLoop(target, starClient, manager,
		poller.WithReporter(o.reporter),
		poller.WithMaxConsecutiveRefreshes(cfg.Poll.MaxConsecutiveRefreshes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll loop: %w", err)
	}

	a := &App{
		cfg:      cfg,
		password: password,
		manager:  manager,
		loop:     loop,
	}

	if cfg.Status.Enabled {
		a.status, err = statusserver.New(a.snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to create status server: %w", err)
		}
	}

	return a, nil
}

// Start logs in, then polls until ctx is cancelled or a fatal error occurs.
// A failed login is fatal and nothing else is started.
func (a *App) Start(ctx context.Context) error {
	if err := a.login(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	var shutdownFuncs []func(context.Context) error

	if a.status != nil {
		address := net.JoinHostPort(a.cfg.Status.Host, strconv.FormatUint(uint64(a.cfg.Status.Port), 10))
		slog.InfoContext(gCtx, "starting status server", "address", address)
		statusErrCh, err := a.status.Start(gCtx, address)
		if err != nil {
			return fmt.Errorf("status server startup failed: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, a.status.Shutdown)

		g.Go(func() error {
			select {
			case err := <-statusErrCh:
				if err != nil {
					slog.ErrorContext(gCtx, "status server runtime error", "error", err)
					return fmt.Errorf("status server: %w", err)
				}
				return nil
			case <-gCtx.Done():
				return nil
			}
		})
	}

	target := a.loop.Target()
	slog.InfoContext(gCtx, "polling",
		"page_id", target.ResourceID,
		"action", target.Action,
		"interval", target.Interval,
	)
	g.Go(func() error {
		if err := a.loop.Run(gCtx); err != nil {
			return fmt.Errorf("poll loop: %w", err)
		}
		return nil
	})

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down", "successes", a.loop.Successes())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, runtimeErr)
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// Successes returns the number of confirmed poll actions so far.
func (a *App) Successes() int64 {
	return a.loop.Successes()
}

func (a *App) login(ctx context.Context) error {
	password, err := a.password.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	creds := session.Credentials{Username: a.cfg.Auth.Username, Password: password}
	if _, err := a.manager.Login(ctx, creds); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (a *App) snapshot() statusserver.Snapshot {
	target := a.loop.Target()
	s := statusserver.Snapshot{
		ResourceID: target.ResourceID,
		Action:     target.Action.String(),
		IntervalMS: target.Interval.Milliseconds(),
		Successes:  a.loop.Successes(),
	}

	if pair, ok := a.manager.Current(); ok {
		if !pair.AccessExpiry.IsZero() {
			s.AccessExpiry = &pair.AccessExpiry
		}
		if !pair.RefreshExpiry.IsZero() {
			s.RefreshExpiry = &pair.RefreshExpiry
		}
	}
	return s
}
