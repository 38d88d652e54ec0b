package domain

import "time"

// NotificationKind enumerates promoter-facing messages.
type NotificationKind string

const (
	NotifyWithdrawalRequested NotificationKind = "withdrawal_requested"
	NotifyWithdrawalApproved  NotificationKind = "withdrawal_approved"
	NotifyWithdrawalRejected  NotificationKind = "withdrawal_rejected"
	NotifyWithdrawalCompleted NotificationKind = "withdrawal_completed"
	NotifyWithdrawalReversed  NotificationKind = "withdrawal_reversed"
	NotifyCommissionPaid      NotificationKind = "commission_paid"
)

// Notification is a user-facing message about a state change.
type Notification struct {
	PromoterID  string           `json:"promoter_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	ReferenceID string           `json:"reference_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
