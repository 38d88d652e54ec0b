package domain

import "time"

// AuditEntity names what an audit entry is about.
type AuditEntity string

const (
	AuditSale       AuditEntity = "affiliate_sale"
	AuditWithdrawal AuditEntity = "withdrawal_request"
)

// AuditEntry is an append-only record of one status transition, written in
// the same transaction as the transition itself.
type AuditEntry struct {
	ID         string      `json:"id" db:"id"`
	EntityType AuditEntity `json:"entity_type" db:"entity_type"`
	EntityID   string      `json:"entity_id" db:"entity_id"`
	FromStatus string      `json:"from_status" db:"from_status"`
	ToStatus   string      `json:"to_status" db:"to_status"`
	ActorID    string      `json:"actor_id" db:"actor_id"`
	Reason     string      `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}
