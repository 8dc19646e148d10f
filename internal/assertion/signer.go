// Package assertion builds the RS256-signed JWT a service account presents
// to the OAuth2 token endpoint.
package assertion

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerdherd/push-relay/internal/domain"
)

const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	DefaultScope    = "https://www.googleapis.com/auth/firebase.messaging https://www.googleapis.com/auth/cloud-platform"

	// backdate absorbs clock skew between us and the token endpoint.
	backdate = 60 * time.Second
	lifetime = time.Hour
)

// Claims is the claim set of a JWT-bearer grant assertion. The audience is a
// plain string on the wire, so it shadows the array form in RegisteredClaims.
type Claims struct {
	Audience string `json:"aud"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

type Option func(*Signer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithTokenURL sets the audience claim.
func WithTokenURL(url string) Option {
	return func(s *Signer) { s.audience = url }
}

func WithScope(scope string) Option {
	return func(s *Signer) { s.scope = scope }
}

// Signer produces single-use assertions. It holds no key material; the key is
// supplied per call and never retained.
type Signer struct {
	now      func() time.Time
	audience string
	scope    string
}

func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		now:      time.Now,
		audience: DefaultTokenURL,
		scope:    DefaultScope,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Audience returns the token endpoint the assertions are addressed to.
func (s *Signer) Audience() string { return s.audience }

// Sign returns the compact serialization of an assertion for sa, valid from
// one minute before now for one hour.
func (s *Signer) Sign(sa *domain.ServiceAccount, key *rsa.PrivateKey) (string, error) {
	if err := sa.Validate(); err != nil {
		return "", err
	}

	iat := s.now().Truncate(time.Second).Add(-backdate)
	claims := Claims{
		Audience: s.audience,
		Scope:    s.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sa.ClientEmail,
			Subject:   sa.ClientEmail,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(lifetime)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = sa.PrivateKeyID

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
