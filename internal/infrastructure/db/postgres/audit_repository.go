package postgres

import (
	"context"
	"fmt"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository on the auth_events table.
type AuditRepository struct {
	db querier
}

func NewAuditRepository(db querier) ports.AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO auth_events (type, user_id, email, occurred_at) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)`,
		string(event.Type), event.UserID, event.Email, event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
