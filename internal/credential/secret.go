package credential

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdherd/push-relay/internal/domain"
)

// SecretSource yields the raw service-account text. It is consulted on every
// load so a rotated secret takes effect without a restart.
type SecretSource interface {
	Secret(ctx context.Context) (string, error)
}

// EnvSecret reads the secret from an environment variable at call time.
type EnvSecret struct {
	Key string
}

func (e EnvSecret) Secret(_ context.Context) (string, error) {
	v := os.Getenv(e.Key)
	if strings.TrimSpace(v) == "" {
		return "", domain.ErrMissingCredential
	}
	return v, nil
}

// StaticSecret serves a fixed value; an empty value counts as missing.
type StaticSecret string

func (s StaticSecret) Secret(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", domain.ErrMissingCredential
	}
	return string(s), nil
}

// Loader resolves and parses the credential for one invocation.
type Loader struct {
	source SecretSource
	logger *zap.Logger
	onTier func(Tier)
}

// NewLoader builds a Loader. onTier is optional (nil = no-op) and receives
// the tier that produced each credential.
func NewLoader(source SecretSource, logger *zap.Logger, onTier func(Tier)) *Loader {
	if onTier == nil {
		onTier = func(Tier) {}
	}
	return &Loader{source: source, logger: logger, onTier: onTier}
}

// Load fetches the secret and parses it. A secret that only the lenient tiers
// could read is logged so operators can fix it at the source.
func (l *Loader) Load(ctx context.Context) (*domain.ServiceAccount, error) {
	raw, err := l.source.Secret(ctx)
	if err != nil {
		return nil, err
	}

	sa, tier, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	l.onTier(tier)

	if tier != TierStrict {
		l.logger.Warn("service account secret is not valid JSON; recovered leniently",
			zap.String("tier", string(tier)),
			zap.String("client_email", sa.ClientEmail),
		)
	}
	return sa, nil
}
