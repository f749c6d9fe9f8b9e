// Package auth provides a generic expiring-credential cache with
// single-flight refresh. It holds no knowledge of which API the token
// authorizes — the issuing exchange is injected.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

// DefaultSafetyMargin is subtracted from a token's expiry when deciding
// whether the cached copy is still usable, so a token is never handed out
// moments before the upstream rejects it.
const DefaultSafetyMargin = 60 * time.Second

// DefaultTTL applies when the issuer reports no expiry and the token
// carries no decodable exp claim.
const DefaultTTL = 15 * time.Minute

// Token is a short-lived bearer credential with its validity window.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer exchanges a long-lived credential for a fresh short-lived token.
// ExpiresIn may be zero when the upstream does not report a lifetime.
type Issuer interface {
	Exchange(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

// Cache caches one bearer token and refreshes it on demand. Concurrent
// callers during a refresh collapse into a single upstream exchange; the
// waiting callers receive the same token.
type Cache struct {
	issuer       Issuer
	safetyMargin time.Duration
	now          func() time.Time

	mu     sync.Mutex
	cached *Token

	group singleflight.Group
}

// Option configures the cache.
type Option func(*Cache)

// WithSafetyMargin overrides the expiry safety margin.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.safetyMargin = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a token cache backed by the given issuer.
func NewCache(issuer Issuer, opts ...Option) *Cache {
	c := &Cache{
		issuer:       issuer,
		safetyMargin: DefaultSafetyMargin,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetToken returns a valid bearer token, refreshing through the issuer
// when the cached one is absent, expired (within the safety margin), or
// forceRefresh is set. A failed exchange surfaces as an AuthError.
func (c *Cache) GetToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if tok := c.validCached(); tok != nil {
			return tok.Value, nil
		}
	}

	// Single-flight: concurrent callers share one exchange. The cached
	// token is re-checked inside the critical path because a caller may
	// arrive after a sibling's refresh already completed.
	v, err, _ := c.group.Do("token", func() (any, error) {
		if !forceRefresh {
			if tok := c.validCached(); tok != nil {
				return tok.Value, nil
			}
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token so the next GetToken always refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Cache) validCached() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil
	}
	if c.now().After(c.cached.ExpiresAt.Add(-c.safetyMargin)) {
		return nil
	}
	return c.cached
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	value, expiresIn, err := c.issuer.Exchange(ctx)
	if err != nil {
		if resilience.IsAuth(err) {
			return "", err
		}
		return "", resilience.NewAuthError(eris.Wrap(err, "auth: token exchange"), 0)
	}

	issued := c.now()
	tok := &Token{
		Value:     value,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(tokenLifetime(value, expiresIn)),
	}

	c.mu.Lock()
	c.cached = tok
	c.mu.Unlock()

	zap.L().Debug("auth: token refreshed",
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return tok.Value, nil
}

// tokenLifetime resolves the token lifetime: issuer-reported value first,
// then the JWT exp claim, then DefaultTTL.
func tokenLifetime(token string, expiresIn time.Duration) time.Duration {
	if expiresIn > 0 {
		return expiresIn
	}
	if exp, ok := jwtExpiry(token); ok {
		if ttl := time.Until(exp); ttl > 0 {
			return ttl
		}
	}
	return DefaultTTL
}

// jwtExpiry extracts the exp claim from a JWT without verifying the
// signature — the upstream already authenticated the exchange; only the
// lifetime is of interest here.
func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
