package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/starpoller/internal/metrics"
)

const (
	addStarPath    = "/api/services/app/appWebSite/AddStarAsync"
	removeStarPath = "/api/services/app/appWebSite/RemoveStarAsync"

	// DefaultTimeout bounds a single star request.
	DefaultTimeout = 10 * time.Second

	maxDetailBytes = 4 << 10
)

// Status classifies the server's answer to a star request.
type Status int

const (
	StatusOther Status = iota
	StatusConfirmed
	StatusUnauthorized
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

// Response is the classified answer to one star request.
type Response struct {
	Status     Status
	StatusCode int
	// Detail is the server-reported message for StatusOther, if any.
	Detail string
}

// ClientOption configures a StarClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets the base transport underneath the bearer-token transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each star request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// StarClient issues add-star and remove-star requests.
// Every request carries the token currently returned by the TokenSource.
type StarClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

// Compile-time check to ensure StarClient implements Starrer
var _ Starrer = (*StarClient)(nil)

// NewStarClient creates a StarClient for the service at baseURL.
func NewStarClient(baseURL string, ts oauth2.TokenSource, opts ...ClientOption) (*StarClient, error) {
	if ts == nil {
		return nil, fmt.Errorf("missing token source")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid service URL %q: scheme and host required", baseURL)
	}

	cfg := &clientConfig{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &StarClient{
		baseURL: u,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: cfg.baseTransport},
		},
		timeout: cfg.timeout,
	}, nil
}

// Star performs the action on the given page.
// A returned error means no classifiable answer was received.
func (c *StarClient) Star(ctx context.Context, action Action, resourceID string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method, path := http.MethodPost, addStarPath
	if action == ActionRemove {
		method, path = http.MethodDelete, removeStarPath
	}

	u := c.baseURL.JoinPath(path)
	u.RawQuery = url.Values{"pageId": []string{resourceID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ExchangeDuration.WithLabelValues(action.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Response{Status: StatusConfirmed, StatusCode: resp.StatusCode}, nil
	case http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Response{Status: StatusUnauthorized, StatusCode: resp.StatusCode}, nil
	default:
		return Response{Status: StatusOther, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}, nil
	}
}

// readDetail extracts the error message of an ABP envelope, falling back to the raw body.
func readDetail(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxDetailBytes))
	if err != nil {
		return ""
	}

	var env struct {
		Error *struct {
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		if env.Error.Details != "" {
			return env.Error.Message + " (" + env.Error.Details + ")"
		}
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}
