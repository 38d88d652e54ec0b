package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal limits.
var (
	MinWithdrawal = decimal.RequireFromString("50.00")
	MaxWithdrawal = decimal.RequireFromString("10000.00")
)

const (
	MinRejectionReasonLength  = 10
	MinPaymentReferenceLength = 5
)

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalReversed  WithdrawalStatus = "reversed"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:   {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved:  {WithdrawalCompleted, WithdrawalReversed},
	WithdrawalCompleted: {WithdrawalReversed},
}

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected, WithdrawalCompleted, WithdrawalReversed:
		return true
	}
	return false
}

// Reserved reports whether a request in this status holds funds out of
// the available balance.
func (s WithdrawalStatus) Reserved() bool {
	return s == WithdrawalPending || s == WithdrawalApproved
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Reversal is listed here but is only reachable through the admin
// reversal operation.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is where a withdrawal is paid out.
type PaymentMethod string

const (
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var bankTransferFields = []string{"account_holder_name", "bank_name", "account_number", "routing_number"}

// ValidateDetails checks the method-specific payout details.
func (m PaymentMethod) ValidateDetails(details map[string]string) error {
	switch m {
	case PaymentPayPal:
		email := strings.TrimSpace(details["email"])
		if email == "" || !strings.Contains(email, "@") {
			return Invalid("payment_details.email", "a valid PayPal email is required")
		}
	case PaymentBankTransfer:
		for _, f := range bankTransferFields {
			if strings.TrimSpace(details[f]) == "" {
				return Invalid("payment_details."+f, "is required for bank transfer")
			}
		}
	default:
		return Invalid("payment_method", "must be paypal or bank_transfer")
	}
	return nil
}

// WithdrawalRequest is a promoter's request to be paid out.
type WithdrawalRequest struct {
	ID                  string            `json:"id" db:"id"`
	PromoterID          string            `json:"promoter_id" db:"promoter_id"`
	Amount              decimal.Decimal   `json:"amount" db:"amount"`
	PaymentMethod       PaymentMethod     `json:"payment_method" db:"payment_method"`
	PaymentDetails      map[string]string `json:"payment_details" db:"payment_details"`
	Status              WithdrawalStatus  `json:"status" db:"status"`
	ReviewerID          string            `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt          *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	RejectionReason     string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CompletionReference string            `json:"completion_reference,omitempty" db:"completion_reference"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	ReversalReason      string            `json:"reversal_reason,omitempty" db:"reversal_reason"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// ValidateAmount checks the request bounds.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(MinWithdrawal) {
		return Invalid("amount", "minimum withdrawal is $"+MinWithdrawal.StringFixed(2))
	}
	if amount.GreaterThan(MaxWithdrawal) {
		return Invalid("amount", "maximum withdrawal is $"+MaxWithdrawal.StringFixed(2))
	}
	return nil
}

// WithdrawalStats summarises a promoter's payout history.
type WithdrawalStats struct {
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn"`
	PendingCount     int             `json:"pending_requests"`
	CompletedCount   int             `json:"completed_requests"`
	TotalCount       int             `json:"total_requests"`
}
