// Package projects is the HTTP client for the upstream project-management
// API (Zoho Projects REST v1 shape).
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

const (
	defaultAuthScheme     = "Zoho-oauthtoken"
	defaultRequestTimeout = 15 * time.Second
	defaultMaxRetries     = 5
	defaultInitialBackoff = 2 * time.Second
	defaultPageSize       = 100
	maxPages              = 1000
	maxErrorBody          = 4096
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	AuthScheme string

	// RequestTimeout bounds every single attempt.
	RequestTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is the first retry delay; each retry doubles it.
	InitialBackoff time.Duration
	PageSize       int

	// BreakerFailures consecutive failed calls open the breaker for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	HTTPClient *http.Client
	// NewTimer creates the sleep timer for one request's retries. Nil uses
	// real timers.
	NewTimer func() backoff.Timer
	Metrics  observability.Metrics
}

// Client talks to the projects API. It is safe for concurrent use; retry
// state lives in each call, never on the client.
type Client struct {
	baseURL  string
	scheme   string
	cfg      Config
	http     *http.Client
	tokens   TokenProvider
	breaker  *gobreaker.CircuitBreaker[[]byte]
	metrics  observability.Metrics
	logger   *slog.Logger
	newTimer func() backoff.Timer
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = defaultAuthScheme
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		scheme:   cfg.AuthScheme,
		cfg:      cfg,
		http:     httpClient,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
		newTimer: cfg.NewTimer,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "projects-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// breakerSuccess decides what counts against the breaker: only failures
// that say something about upstream health.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return !upErr.Retryable()
	}
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// FetchPortals lists the portals visible to the token.
func (c *Client) FetchPortals(ctx context.Context) ([]Portal, error) {
	var resp portalsResponse
	if err := c.getJSON(ctx, "/portals/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Portals, nil
}

// FetchUsers lists the users of a portal.
func (c *Client) FetchUsers(ctx context.Context, portalID string) ([]RemoteUser, error) {
	path := "/portal/" + url.PathEscape(portalID) + "/users/"
	return paginate(ctx, c, path, nil, func(r *usersResponse) ([]RemoteUser, func(RemoteUser) ID) {
		return r.Users, func(u RemoteUser) ID { return u.ID }
	})
}

// FetchProjects lists the projects of a portal.
func (c *Client) FetchProjects(ctx context.Context, portalID string) ([]Project, error) {
	path := "/portal/" + url.PathEscape(portalID) + "/projects/"
	return paginate(ctx, c, path, nil, func(r *projectsResponse) ([]Project, func(Project) ID) {
		return r.Projects, func(p Project) ID { return p.ID }
	})
}

// FetchTasks lists the tasks of a project, optionally only those modified
// after q.ModifiedSince.
func (c *Client) FetchTasks(ctx context.Context, portalID, projectID string, q TaskQuery) ([]RemoteTask, error) {
	path := "/portal/" + url.PathEscape(portalID) + "/projects/" + url.PathEscape(projectID) + "/tasks/"
	params := url.Values{}
	if q.ModifiedSince != nil && !q.ModifiedSince.IsZero() {
		params.Set("last_modified_time", strconv.FormatInt(q.ModifiedSince.UnixMilli(), 10))
	}
	return paginate(ctx, c, path, params, func(r *tasksResponse) ([]RemoteTask, func(RemoteTask) ID) {
		return r.Tasks, func(t RemoteTask) ID { return t.ID }
	})
}

// paginate walks index/range pages until a short page. A page that repeats
// the previous first item ends the walk too, for servers that ignore the
// paging parameters.
func paginate[R any, T any](ctx context.Context, c *Client, path string, params url.Values, extract func(*R) ([]T, func(T) ID)) ([]T, error) {
	var (
		all       []T
		prevFirst ID
	)
	size := c.cfg.PageSize
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("index", strconv.Itoa(page*size+1))
		q.Set("range", strconv.Itoa(size))

		var resp R
		if err := c.getJSON(ctx, path, q, &resp); err != nil {
			return nil, err
		}
		items, idOf := extract(&resp)
		if len(items) == 0 {
			break
		}
		if page > 0 && idOf(items[0]) == prevFirst {
			break
		}
		prevFirst = idOf(items[0])
		all = append(all, items...)
		if len(items) < size {
			break
		}
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	// 204 No Content is how the API reports an empty list.
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// get performs one logical GET: breaker, then retries with a fresh backoff
// for this call only.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.getWithRetry(ctx, path, endpoint)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, path)
	}
	return body, err
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Hour,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxRetries)), ctx)
}

func (c *Client) getWithRetry(ctx context.Context, path, endpoint string) ([]byte, error) {
	var (
		body    []byte
		attempt int
	)

	op := func() error {
		attempt++
		b, err := c.attempt(ctx, path, endpoint)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	notify := func(err error, next time.Duration) {
		c.metrics.Counter(observability.MetricUpstreamRetries, 1, observability.T("path", path))
		c.logger.WarnContext(ctx, "retrying projects api request",
			"path", path,
			"attempt", attempt,
			"delay", next.String(),
			"error", err,
		)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	if err := backoff.RetryNotifyWithTimer(op, c.newBackOff(ctx), notify, timer); err != nil {
		return nil, err
	}
	return body, nil
}

// attempt performs a single HTTP exchange. Errors that must not be
// retried come back wrapped in backoff.Permanent.
func (c *Client) attempt(ctx context.Context, path, endpoint string) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, backoff.Permanent(&AuthError{Err: err})
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Authorization", c.scheme+" "+token)
	req.Header.Set("Accept", "application/json")

	c.metrics.Counter(observability.MetricUpstreamRequests, 1, observability.T("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		// The caller gave up; retrying cannot help.
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("projects api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", path, err)
		}
		return body, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	upErr := &UpstreamError{
		Method:     http.MethodGet,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
	if upErr.Retryable() {
		return nil, upErr
	}
	if upErr.Unauthorized() {
		if inv, ok := c.tokens.(interface{ Invalidate(context.Context) error }); ok {
			_ = inv.Invalidate(ctx)
		}
	}
	return nil, backoff.Permanent(upErr)
}
