package projects

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTimer fires immediately and records every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delays = append(t.delays, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

func (t *recordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenProvider, mutate func(*Config)) (*Client, *recordingTimer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	timer := &recordingTimer{}
	cfg := Config{
		BaseURL:  srv.URL + "/restapi",
		NewTimer: func() backoff.Timer { return timer },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if tokens == nil {
		tokens = StaticTokenProvider("tok")
	}
	return NewClient(cfg, tokens, nil), timer
}

func TestClient_FetchPortals_SendsToken(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"portals":[{"id":123456,"name":"acme"},{"id":"789"}]}`))
	}, nil, nil)

	portals, err := client.FetchPortals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Zoho-oauthtoken tok", gotAuth)
	assert.Equal(t, "/restapi/portals/", gotPath)
	require.Len(t, portals, 2)
	assert.Equal(t, ID("123456"), portals[0].ID)
	assert.Equal(t, ID("789"), portals[1].ID)
}

func TestClient_CustomAuthScheme(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"portals":[]}`))
	}, nil, func(c *Config) { c.AuthScheme = "Bearer" })

	_, err := client.FetchPortals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestClient_RetriesRateLimitWithExponentialBackoff(t *testing.T) {
	var calls atomic.Int32
	client, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}, nil, nil)

	_, err := client.FetchPortals(context.Background())
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second,
	}, timer.Delays())
}

func TestClient_RecoversAfterServerError(t *testing.T) {
	var calls atomic.Int32
	client, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "oops", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"portals":[{"id":1}]}`))
	}, nil, nil)

	portals, err := client.FetchPortals(context.Background())
	require.NoError(t, err)
	assert.Len(t, portals, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, timer.Delays())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad"}`, http.StatusBadRequest)
	}, nil, nil)

	_, err := client.FetchPortals(context.Background())

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "bad")
	assert.False(t, upErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, timer.Delays())
}

func TestClient_TokenFailureIsAuthError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, StaticTokenProvider(""), nil)

	_, err := client.FetchPortals(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, int32(0), calls.Load())
}

// countingTokens hands out a new token per call.
type countingTokens struct {
	n           atomic.Int32
	invalidated atomic.Int32
}

func (c *countingTokens) AccessToken(context.Context) (string, error) {
	return "tok-" + strconv.Itoa(int(c.n.Add(1))), nil
}

func (c *countingTokens) Invalidate(context.Context) error {
	c.invalidated.Add(1)
	return nil
}

func TestClient_FetchesTokenPerAttempt(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	tokens := &countingTokens{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		n := len(seen)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"portals":[]}`))
	}, tokens, nil)

	_, err := client.FetchPortals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoho-oauthtoken tok-1", "Zoho-oauthtoken tok-2", "Zoho-oauthtoken tok-3"}, seen)
}

func TestClient_UnauthorizedInvalidatesToken(t *testing.T) {
	tokens := &countingTokens{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens, nil)

	_, err := client.FetchPortals(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, int32(1), tokens.invalidated.Load())
}

func TestClient_FetchTasks_PaginatesAndSendsWatermark(t *testing.T) {
	var (
		mu       sync.Mutex
		indexes  []string
		modified string
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restapi/portal/p1/projects/42/tasks/", r.URL.Path)
		mu.Lock()
		indexes = append(indexes, r.URL.Query().Get("index"))
		modified = r.URL.Query().Get("last_modified_time")
		mu.Unlock()

		switch r.URL.Query().Get("index") {
		case "1":
			_, _ = w.Write([]byte(`{"tasks":[{"id":1,"name":"a","status":{"name":"Open"},"details":{"owners":[{"id":"u1"}]}},{"id":2,"name":"b"}]}`))
		case "3":
			_, _ = w.Write([]byte(`{"tasks":[{"id":3,"name":"c"}]}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("index"))
		}
	}, nil, func(c *Config) { c.PageSize = 2 })

	since := time.UnixMilli(1700000000000)
	tasks, err := client.FetchTasks(context.Background(), "p1", "42", TaskQuery{ModifiedSince: &since})
	require.NoError(t, err)

	require.Len(t, tasks, 3)
	assert.Equal(t, "u1", tasks[0].OwnerID())
	assert.Equal(t, "Open", tasks[0].Status.Name)
	assert.Equal(t, "", tasks[1].OwnerID())
	assert.Equal(t, []string{"1", "3"}, indexes)
	assert.Equal(t, "1700000000000", modified)
}

func TestClient_PaginationStopsWhenServerIgnoresIndex(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"users":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`))
	}, nil, func(c *Config) { c.PageSize = 2 })

	users, err := client.FetchUsers(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoContentIsEmptyList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil, nil)

	tasks, err := client.FetchTasks(context.Background(), "p1", "42", TaskQuery{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, nil, func(c *Config) {
		c.MaxRetries = -1
		c.BreakerFailures = 3
		c.BreakerTimeout = time.Hour
	})

	for i := 0; i < 3; i++ {
		_, err := client.FetchPortals(context.Background())
		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)
	}

	_, err := client.FetchPortals(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil, func(c *Config) { c.BreakerFailures = 2 })

	for i := 0; i < 4; i++ {
		_, err := client.FetchPortals(context.Background())
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
}

func TestClient_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil, nil)

	_, err := client.FetchPortals(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}
