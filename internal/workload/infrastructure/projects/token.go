package projects

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenProvider yields a valid access token. The client calls it before
// every attempt and never caches the result.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token. Used for development and
// self-hosted mock servers.
type StaticTokenProvider string

// AccessToken returns the fixed token, failing when it is empty.
func (p StaticTokenProvider) AccessToken(context.Context) (string, error) {
	if p == "" {
		return "", errors.New("no access token configured")
	}
	return string(p), nil
}

// OAuthConfig configures the refresh-token grant.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
	// EarlyExpiry refreshes this long before the token actually expires.
	EarlyExpiry time.Duration
}

// OAuthTokenProvider refreshes access tokens with a long-lived refresh
// token. It is safe for concurrent use.
type OAuthTokenProvider struct {
	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewOAuthTokenProvider builds a provider. ctx supplies the HTTP client for
// token requests (see oauth2.HTTPClient) and must outlive the provider.
func NewOAuthTokenProvider(ctx context.Context, cfg OAuthConfig) (*OAuthTokenProvider, error) {
	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.RefreshToken == "" {
		return nil, errors.New("oauth client id, token url and refresh token are required")
	}
	if cfg.EarlyExpiry <= 0 {
		cfg.EarlyExpiry = 5 * time.Minute
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	seed := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	return &OAuthTokenProvider{
		source: oauth2.ReuseTokenSourceWithExpiry(seed, oc.TokenSource(ctx, seed), cfg.EarlyExpiry),
	}, nil
}

// Token returns the current token, refreshing it when needed.
func (p *OAuthTokenProvider) Token(context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return tok, nil
}

// AccessToken implements TokenProvider.
func (p *OAuthTokenProvider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// TokenSource is a provider that also reports expiry.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// RedisTokenCache shares one access token between the worker, the CLI and
// the MCP server so they do not each burn a refresh.
type RedisTokenCache struct {
	client     *redis.Client
	key        string
	source     TokenSource
	sealer     Sealer
	defaultTTL time.Duration
}

// NewRedisTokenCache caches tokens from source under key.
func NewRedisTokenCache(client *redis.Client, key string, source TokenSource) *RedisTokenCache {
	if key == "" {
		key = "teamflow:projects:access_token"
	}
	return &RedisTokenCache{client: client, key: key, source: source, defaultTTL: 10 * time.Minute}
}

// Sealer encrypts cached tokens at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// WithSealer stores tokens encrypted. Entries written without it are
// treated as misses and replaced.
func (c *RedisTokenCache) WithSealer(s Sealer) *RedisTokenCache {
	c.sealer = s
	return c
}

// AccessToken returns the cached token or refreshes it from the source.
// Cache errors fall through to the source.
func (c *RedisTokenCache) AccessToken(ctx context.Context) (string, error) {
	if raw, err := c.client.Get(ctx, c.key).Result(); err == nil && raw != "" {
		if tok, err := c.open(raw); err == nil {
			return tok, nil
		}
	}

	tok, err := c.source.Token(ctx)
	if err != nil {
		return "", err
	}

	ttl := c.defaultTTL
	if !tok.Expiry.IsZero() {
		// Expire the cached copy a minute ahead of the token itself.
		ttl = time.Until(tok.Expiry) - time.Minute
	}
	if ttl > 0 {
		if sealed, err := c.seal(tok.AccessToken); err == nil {
			_ = c.client.Set(ctx, c.key, sealed, ttl).Err()
		}
	}
	return tok.AccessToken, nil
}

func (c *RedisTokenCache) seal(token string) (string, error) {
	if c.sealer == nil {
		return token, nil
	}
	return c.sealer.Seal(token)
}

func (c *RedisTokenCache) open(raw string) (string, error) {
	if c.sealer == nil {
		return raw, nil
	}
	return c.sealer.Open(raw)
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (c *RedisTokenCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
