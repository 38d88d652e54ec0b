package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by every service. Callers match with errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrDuplicateSession        = errors.New("click session already recorded")
	ErrDuplicateConversion     = errors.New("order already converted by a different click session")
	ErrDuplicatePendingRequest = errors.New("promoter already has a pending withdrawal request")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInternalInconsistency   = errors.New("ledger invariant violated")
	ErrNotFound                = errors.New("not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientFundsError carries the amounts involved so the caller can
// show the promoter what is actually spendable.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InconsistencyError reports a broken ledger invariant for one promoter.
// It is never recovered from automatically.
type InconsistencyError struct {
	PromoterID string
	Detail     string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency for promoter %s: %s", e.PromoterID, e.Detail)
}

func (e *InconsistencyError) Unwrap() error { return ErrInternalInconsistency }
