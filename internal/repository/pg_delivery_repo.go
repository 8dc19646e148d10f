package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nerdherd/push-relay/internal/domain"
)

type pgDeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewPgDeliveryRepository returns a DeliveryRepository backed by push_deliveries.
func NewPgDeliveryRepository(pool *pgxpool.Pool) DeliveryRepository {
	return &pgDeliveryRepository{pool: pool}
}

func (r *pgDeliveryRepository) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO push_deliveries
			(id, user_id, status_code, response, correlation_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.UserID, rec.StatusCode, rec.Response, rec.CorrelationID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *pgDeliveryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.DeliveryRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, status_code, response, correlation_id, created_at
		FROM push_deliveries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.DeliveryRecord, error) {
		rec := &domain.DeliveryRecord{}
		err := row.Scan(&rec.ID, &rec.UserID, &rec.StatusCode, &rec.Response, &rec.CorrelationID, &rec.CreatedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan deliveries: %w", err)
	}
	return records, nil
}
