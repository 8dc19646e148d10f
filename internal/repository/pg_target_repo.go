package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nerdherd/push-relay/internal/domain"
)

type pgTargetRepository struct {
	pool *pgxpool.Pool
}

// NewPgTargetRepository returns a TargetRepository reading profiles.fcm_token.
func NewPgTargetRepository(pool *pgxpool.Pool) TargetRepository {
	return &pgTargetRepository{pool: pool}
}

func (r *pgTargetRepository) FCMToken(ctx context.Context, userID string) (string, error) {
	var token *string
	err := r.pool.QueryRow(ctx,
		`SELECT fcm_token FROM profiles WHERE user_id = $1 LIMIT 1`, userID,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoTarget
	}
	if err != nil {
		return "", fmt.Errorf("query fcm token: %w", err)
	}
	if token == nil || *token == "" {
		return "", domain.ErrNoTarget
	}
	return *token, nil
}
