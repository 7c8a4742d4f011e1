package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/florianilch/starpoller/internal/metrics"
)

const (
	loginPath   = "/api/TokenAuth/Login"
	refreshPath = "/api/TokenAuth/RefreshToken"

	// refreshTokenHeader carries the refresh token alongside the bearer access token.
	refreshTokenHeader = "RefreshToken"

	// DefaultClientType identifies this program to the authority as a web client.
	DefaultClientType = 1

	// DefaultTimeout bounds each exchange.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
	clientType    int
	clock         clockwork.Clock
}

// WithTransport sets the base transport for exchanges.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds every exchange. A timeout surfaces as ErrTransport.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithClientType sets the clientType field sent on login.
func WithClientType(clientType int) ClientOption {
	return func(c *clientConfig) {
		c.clientType = clientType
	}
}

// WithClock sets the clock used to turn expiry hints into absolute times.
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *clientConfig) {
		c.clock = clock
	}
}

// Client performs the login and refresh exchanges against the authority.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	clientType int
	clock      clockwork.Clock
}

// Compile-time check to ensure Client implements Exchanger
var _ Exchanger = (*Client)(nil)

// NewClient creates a Client for the authority at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authority URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid authority URL %q: scheme and host required", baseURL)
	}

	cfg := &clientConfig{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
		clientType:    DefaultClientType,
		clock:         clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Transport: cfg.baseTransport},
		timeout:    cfg.timeout,
		clientType: cfg.clientType,
		clock:      cfg.clock,
	}, nil
}

type loginRequest struct {
	UserName   string `json:"userName"`
	Password   string `json:"password"`
	ClientType int    `json:"clientType"`
}

// envelope wraps every response of the authority.
type envelope struct {
	Result              *tokenResult `json:"result"`
	Success             bool         `json:"success"`
	UnAuthorizedRequest bool         `json:"unAuthorizedRequest"`
	Error               *remoteError `json:"error"`
}

// tokenResult is shared by both exchanges. Login answers in camelCase and
// refresh in PascalCase; encoding/json matches field names case-insensitively.
type tokenResult struct {
	AccessToken            string `json:"accessToken"`
	ExpireInSeconds        int    `json:"expireInSeconds"`
	RefreshToken           string `json:"refreshToken"`
	RefreshExpireInSeconds int    `json:"refreshExpireInSeconds"`
}

type remoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *remoteError) String() string {
	if e == nil {
		return ""
	}
	if e.Details != "" {
		return e.Message + " (" + e.Details + ")"
	}
	return e.Message
}

// Login exchanges credentials for a new TokenPair.
func (c *Client) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	body, err := json.Marshal(loginRequest{
		UserName:   creds.Username,
		Password:   creds.Password,
		ClientType: c.clientType,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("marshaling login request: %w", err)
	}

	return c.exchange(ctx, "login", ErrRejected, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(loginPath), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// Refresh presents the current pair and returns its replacement.
// The presented pair must not be used again once Refresh succeeds.
func (c *Client) Refresh(ctx context.Context, current TokenPair) (TokenPair, error) {
	return c.exchange(ctx, "refresh", ErrRefreshRejected, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(refreshPath), http.NoBody)
		if err != nil {
			return nil, err
		}
		current.OAuth2().SetAuthHeader(req)
		req.Header.Set(refreshTokenHeader, current.RefreshToken)
		return req, nil
	})
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// exchange runs one bounded round trip and classifies its result.
// Any HTTP answer other than a well-formed success envelope is reported as rejected.
func (c *Client) exchange(ctx context.Context, name string, rejected error, build func(context.Context) (*http.Request, error)) (TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("building %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ExchangeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return TokenPair{}, &AuthError{Exchange: name, Kind: ErrTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return TokenPair{}, &AuthError{Exchange: name, Kind: ErrTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode != http.StatusOK {
		authErr := &AuthError{Exchange: name, Kind: rejected, StatusCode: resp.StatusCode}
		if decodeErr == nil {
			authErr.Message = env.Error.String()
		} else {
			authErr.Message = strings.TrimSpace(string(body))
		}
		return TokenPair{}, authErr
	}

	if decodeErr != nil {
		return TokenPair{}, &AuthError{Exchange: name, Kind: rejected, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if !env.Success || env.UnAuthorizedRequest {
		return TokenPair{}, &AuthError{Exchange: name, Kind: rejected, StatusCode: resp.StatusCode, Message: env.Error.String()}
	}
	if env.Result == nil || env.Result.AccessToken == "" || env.Result.RefreshToken == "" {
		return TokenPair{}, &AuthError{Exchange: name, Kind: rejected, StatusCode: resp.StatusCode, Message: "response carries no token pair"}
	}

	now := c.clock.Now()
	return TokenPair{
		AccessToken:   env.Result.AccessToken,
		RefreshToken:  env.Result.RefreshToken,
		AccessExpiry:  expiryAfter(now, env.Result.ExpireInSeconds),
		RefreshExpiry: expiryAfter(now, env.Result.RefreshExpireInSeconds),
	}, nil
}
