package poller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/starpoller/internal/poller"
	"github.com/florianilch/starpoller/internal/session"
)

// fakeService emulates the remote service: the access token issued at login
// is accepted for three star requests, after which it reports expiry until a
// refresh issues a new pair.
type fakeService struct {
	mu sync.Mutex

	generation     int
	acceptedWithGn int
	starAuth       []string
	refreshAuth    []string
}

func (s *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/TokenAuth/Login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserName string `json:"userName"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.UserName != "alice" || body.Password != "s3cret" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":{"message":"Login failed!"}}`))
			return
		}
		s.writeTokens(w, false)
	})

	mux.HandleFunc("POST /api/TokenAuth/RefreshToken", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.refreshAuth = append(s.refreshAuth, r.Header.Get("Authorization")+"|"+r.Header.Get("RefreshToken"))
		want := fmt.Sprintf("refresh-%d", s.generation)
		s.mu.Unlock()

		if r.Header.Get("RefreshToken") != want {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"unAuthorizedRequest":true}`))
			return
		}
		s.writeTokens(w, true)
	})

	mux.HandleFunc("POST /api/services/app/appWebSite/AddStarAsync", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		auth := r.Header.Get("Authorization")
		s.starAuth = append(s.starAuth, auth)

		if auth != fmt.Sprintf("Bearer access-%d", s.generation) || s.acceptedWithGn >= 3 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.acceptedWithGn++
		_, _ = w.Write([]byte(`{"result":null,"success":true}`))
	})

	return mux
}

func (s *fakeService) writeTokens(w http.ResponseWriter, refresh bool) {
	s.mu.Lock()
	if refresh {
		s.generation++
		s.acceptedWithGn = 0
	}
	gen := s.generation
	s.mu.Unlock()

	accessKey, refreshKey := "accessToken", "refreshToken"
	if refresh {
		accessKey, refreshKey = "AccessToken", "RefreshToken"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": map[string]any{
			accessKey:  fmt.Sprintf("access-%d", gen),
			refreshKey: fmt.Sprintf("refresh-%d", gen),
		},
		"success": true,
	})
}

// syncBuffer guards a bytes.Buffer shared between the loop and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestScenario_LoginPollExpireRefreshContinue(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authClient, err := session.NewClient(server.URL)
	require.NoError(t, err)
	manager, err := session.NewManager(authClient)
	require.NoError(t, err)
	_, err = manager.Login(ctx, session.Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	starClient, err := poller.NewStarClient(server.URL, manager)
	require.NoError(t, err)

	out := &syncBuffer{}
	clock := clockwork.NewFakeClock()
	interval := 200 * time.Millisecond
	loop, err := poller.NewLoop(
		poller.Target{ResourceID: "143991", Action: poller.ActionAdd, Interval: interval},
		starClient,
		manager,
		poller.WithClock(clock),
		poller.WithReporter(poller.NewConsoleReporter(out)),
	)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()

	// Three confirmed attempts, each followed by an interval wait.
	for range 3 {
		require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
		clock.Advance(interval)
	}
	// Fourth attempt expires, refresh, immediate retry confirmed, then wait.
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	assert.Equal(t,
		"Add star success (x1)\n"+
			"Add star success (x2)\n"+
			"Add star success (x3)\n"+
			"Login expired, refreshing token...\n"+
			"Add star success (x4)\n",
		out.String())
	assert.EqualValues(t, 4, loop.Successes())

	service.mu.Lock()
	assert.Equal(t, []string{
		"Bearer access-0",
		"Bearer access-0",
		"Bearer access-0",
		"Bearer access-0",
		"Bearer access-1",
	}, service.starAuth)
	assert.Equal(t, []string{"Bearer access-0|refresh-0"}, service.refreshAuth)
	service.mu.Unlock()

	// The loop keeps going with the new pair only.
	clock.Advance(interval)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.EqualValues(t, 5, loop.Successes())

	service.mu.Lock()
	assert.Equal(t, "Bearer access-1", service.starAuth[len(service.starAuth)-1])
	service.mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestScenario_RejectedRefreshStopsPolling(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	ctx := context.Background()
	authClient, err := session.NewClient(server.URL)
	require.NoError(t, err)
	manager, err := session.NewManager(authClient)
	require.NoError(t, err)
	_, err = manager.Login(ctx, session.Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	// The server forgets the session: the current refresh token no longer matches.
	service.mu.Lock()
	service.generation = 7
	service.mu.Unlock()

	starClient, err := poller.NewStarClient(server.URL, manager)
	require.NoError(t, err)
	loop, err := poller.NewLoop(
		poller.Target{ResourceID: "1", Action: poller.ActionAdd, Interval: time.Millisecond},
		starClient,
		manager,
	)
	require.NoError(t, err)

	err = loop.Run(ctx)

	assert.ErrorIs(t, err, session.ErrRefreshRejected)
	service.mu.Lock()
	assert.Len(t, service.starAuth, 1)
	service.mu.Unlock()
}
