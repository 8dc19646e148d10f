package repository

import (
	"context"

	"github.com/nerdherd/push-relay/internal/domain"
)

// TargetRepository resolves a user's registered device token.
// The pgx implementation is in pg_target_repo.go.
// Tests use hand-written mocks (mock_repos.go).
type TargetRepository interface {
	// FCMToken returns domain.ErrNoTarget when the user has no token on file.
	FCMToken(ctx context.Context, userID string) (string, error)
}

// DeliveryRepository persists the audit trail of delivery attempts.
type DeliveryRepository interface {
	Record(ctx context.Context, rec *domain.DeliveryRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.DeliveryRecord, error)
}

// Suppressor remembers device tokens the push backend reported as dead.
type Suppressor interface {
	Suppress(ctx context.Context, deviceToken string) error
	IsSuppressed(ctx context.Context, deviceToken string) (bool, error)
}

// NopSuppressor is used when no Redis is configured.
type NopSuppressor struct{}

func (NopSuppressor) Suppress(context.Context, string) error { return nil }
func (NopSuppressor) IsSuppressed(context.Context, string) (bool, error) { return false, nil }
