package token

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/nerdherd/push-relay/internal/assertion"
	"github.com/nerdherd/push-relay/internal/credential"
	"github.com/nerdherd/push-relay/internal/domain"
)

// Cache modes accepted by NewSource.
const (
	ModeAlways = "always"
	ModeCached = "cached"
)

// Source hands out an access token for a service account.
type Source interface {
	Token(ctx context.Context, sa *domain.ServiceAccount) (*oauth2.Token, error)
}

// Minter runs the full import, sign and exchange sequence on every call.
// It is the "always" mode source.
type Minter struct {
	signer    *assertion.Signer
	exchanger *Exchanger
}

func NewMinter(signer *assertion.Signer, exchanger *Exchanger) *Minter {
	return &Minter{signer: signer, exchanger: exchanger}
}

func (m *Minter) Token(ctx context.Context, sa *domain.ServiceAccount) (*oauth2.Token, error) {
	key, err := credential.ImportKey(sa.PrivateKey)
	if err != nil {
		return nil, err
	}
	signed, err := m.signer.Sign(sa, key)
	if err != nil {
		return nil, err
	}
	return m.exchanger.Exchange(ctx, signed)
}

// CachedSource shares one token between concurrent requests. Refreshes are
// collapsed through a singleflight group and a token is only served while
// oauth2 still considers it valid. Rotating private_key_id drops the cache.
type CachedSource struct {
	next   Source
	hooks  Hooks
	logger *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	tok      *oauth2.Token
	cacheKey string
}

func NewCachedSource(next Source, hooks Hooks, logger *zap.Logger) *CachedSource {
	return &CachedSource{next: next, hooks: hooks, logger: logger}
}

func keyFor(sa *domain.ServiceAccount) string {
	return sa.ClientEmail + "|" + sa.PrivateKeyID
}

func (c *CachedSource) cached(key string) *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A zero Expiry reads as valid forever to oauth2, so it is never reused.
	if c.cacheKey == key && c.tok.Valid() && !c.tok.Expiry.IsZero() {
		return c.tok
	}
	return nil
}

func (c *CachedSource) Token(ctx context.Context, sa *domain.ServiceAccount) (*oauth2.Token, error) {
	key := keyFor(sa)
	if tok := c.cached(key); tok != nil {
		c.hooks.cacheLookup(true)
		return tok, nil
	}
	c.hooks.cacheLookup(false)

	// The refresh outlives any single caller so one cancelled request does not
	// fail the others waiting on it.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if tok := c.cached(key); tok != nil {
			return tok, nil
		}
		tok, err := c.next.Token(refreshCtx, sa)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.cacheKey != "" && c.cacheKey != key {
			c.logger.Info("service account key rotated, dropping cached token")
		}
		c.tok, c.cacheKey = tok, key
		c.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for token refresh: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// NewSource returns the source for a cache mode.
func NewSource(mode string, minter *Minter, hooks Hooks, logger *zap.Logger) (Source, error) {
	switch mode {
	case ModeAlways, "":
		return minter, nil
	case ModeCached:
		return NewCachedSource(minter, hooks, logger), nil
	default:
		return nil, fmt.Errorf("unknown token cache mode %q", mode)
	}
}

var (
	_ Source = (*Minter)(nil)
	_ Source = (*CachedSource)(nil)
)
