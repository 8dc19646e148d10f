// Package token trades signed assertions for OAuth2 access tokens and decides
// when a token may be reused.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nerdherd/push-relay/internal/domain"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// maxBodyBytes bounds how much of a token endpoint response is read.
const maxBodyBytes = 1 << 20

// fallbackLifetime applies when the endpoint omits expires_in. It ends no
// later than the exp of the assertion that was exchanged.
const fallbackLifetime = 59 * time.Minute

// Hooks are optional metric callbacks. Nil fields are ignored.
type Hooks struct {
	// OnExchange receives "ok", "rejected" or "error" for every round trip.
	OnExchange func(outcome string, latency time.Duration)
	// OnCacheLookup reports whether a cached token was served.
	OnCacheLookup func(hit bool)
}

func (h Hooks) exchange(outcome string, latency time.Duration) {
	if h.OnExchange != nil {
		h.OnExchange(outcome, latency)
	}
}

func (h Hooks) cacheLookup(hit bool) {
	if h.OnCacheLookup != nil {
		h.OnCacheLookup(hit)
	}
}

// ExchangerConfig holds the endpoint and retry settings.
type ExchangerConfig struct {
	TokenURL string
	Timeout  time.Duration
	// Attempts is the total number of tries; values below 1 mean 1.
	Attempts int
	// Backoff is multiplied by the attempt number between tries.
	Backoff time.Duration
}

// Exchanger performs the JWT-bearer grant against the token endpoint.
type Exchanger struct {
	cfg        ExchangerConfig
	httpClient *http.Client
	hooks      Hooks
	logger     *zap.Logger
}

func NewExchanger(cfg ExchangerConfig, hooks Hooks, logger *zap.Logger) *Exchanger {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Exchanger{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		hooks:  hooks,
		logger: logger,
	}
}

// Exchange returns the access token granted for assertion. A rejection by
// the endpoint is a *domain.TokenExchangeError carrying the response body.
// Only transport failures and 5xx answers are retried, and only when more
// than one attempt is configured.
func (e *Exchanger) Exchange(ctx context.Context, assertion string) (*oauth2.Token, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		if attempt > 1 {
			wait := e.cfg.Backoff * time.Duration(attempt-1)
			e.logger.Warn("retrying token exchange",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("token exchange: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		tok, err := e.exchangeOnce(ctx, assertion)
		if err == nil {
			return tok, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var exErr *domain.TokenExchangeError
	if errors.As(err, &exErr) {
		return exErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func (e *Exchanger) exchangeOnce(ctx context.Context, assertion string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.hooks.exchange("error", time.Since(start))
		return nil, fmt.Errorf("%w: post token request: %w", domain.ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		e.hooks.exchange("error", time.Since(start))
		return nil, fmt.Errorf("%w: read token response: %w", domain.ErrTokenExchange, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.hooks.exchange("rejected", time.Since(start))
		return nil, &domain.TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok oauth2.Token
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		e.hooks.exchange("rejected", time.Since(start))
		return nil, &domain.TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if tok.ExpiresIn > 0 {
		tok.Expiry = start.Add(time.Duration(tok.ExpiresIn) * time.Second)
	} else {
		tok.Expiry = start.Add(fallbackLifetime)
	}

	e.hooks.exchange("ok", time.Since(start))
	return &tok, nil
}
