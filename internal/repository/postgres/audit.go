package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

func insertAudit(ctx context.Context, q querier, e domain.AuditEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO eventlog.audit_entries
			(id, entity_type, entity_id, from_status, to_status, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), e.EntityType, e.EntityID, e.FromStatus, e.ToStatus, e.ActorID, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditTrail returns the status history of one sale or withdrawal, oldest
// first.
func (s *Store) AuditTrail(ctx context.Context, entity domain.AuditEntity, entityID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, from_status, to_status, actor_id, reason, created_at
		FROM eventlog.audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id
	`, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FromStatus, &e.ToStatus,
			&e.ActorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
