package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TxCreditCommission TransactionType = "credit_commission"
	TxDebitWithdrawal  TransactionType = "debit_withdrawal"
	TxReversal         TransactionType = "reversal"
)

// Valid reports whether t is a known entry kind.
func (t TransactionType) Valid() bool {
	switch t {
	case TxCreditCommission, TxDebitWithdrawal, TxReversal:
		return true
	}
	return false
}

// WalletTransaction is one immutable ledger entry. Amount is signed:
// credits are positive, debits negative, reversals carry the sign of the
// money movement they compensate.
type WalletTransaction struct {
	ID          string          `json:"id" db:"id"`
	PromoterID  string          `json:"promoter_id" db:"promoter_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ReferenceID string          `json:"reference_id" db:"reference_id"`
	Description string          `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// LedgerTotals is the fold of a promoter's ledger plus the amount held by
// open withdrawal requests. Debits is stored as a positive magnitude.
type LedgerTotals struct {
	Credits   decimal.Decimal
	Debits    decimal.Decimal
	Reversals decimal.Decimal
	Reserved  decimal.Decimal
}

// Add folds one entry into the totals.
func (t LedgerTotals) Add(tx WalletTransaction) LedgerTotals {
	switch tx.Type {
	case TxCreditCommission:
		t.Credits = t.Credits.Add(tx.Amount)
	case TxDebitWithdrawal:
		t.Debits = t.Debits.Add(tx.Amount.Abs())
	case TxReversal:
		t.Reversals = t.Reversals.Add(tx.Amount)
	}
	return t
}

// Available is money the promoter can still request.
func (t LedgerTotals) Available() decimal.Decimal {
	return t.Credits.Sub(t.Debits).Add(t.Reversals).Sub(t.Reserved)
}

// Balance derives the wallet view.
func (t LedgerTotals) Balance(promoterID string, asOf time.Time) Balance {
	return Balance{
		PromoterID:  promoterID,
		Available:   t.Available(),
		Pending:     t.Reserved,
		Withdrawn:   t.Debits.Sub(t.Reversals),
		TotalEarned: t.Credits,
		AsOf:        asOf,
	}
}

// Balance is the derived PromoterWallet. It is never stored as the
// authority; caches hold copies that can be rebuilt from the ledger.
type Balance struct {
	PromoterID  string          `json:"promoter_id"`
	Available   decimal.Decimal `json:"available_balance"`
	Pending     decimal.Decimal `json:"pending_balance"`
	Withdrawn   decimal.Decimal `json:"total_withdrawn"`
	TotalEarned decimal.Decimal `json:"total_earned"`
	AsOf        time.Time       `json:"as_of"`
}

// Equal compares the money fields, ignoring AsOf.
func (b Balance) Equal(o Balance) bool {
	return b.PromoterID == o.PromoterID &&
		b.Available.Equal(o.Available) &&
		b.Pending.Equal(o.Pending) &&
		b.Withdrawn.Equal(o.Withdrawn) &&
		b.TotalEarned.Equal(o.TotalEarned)
}
