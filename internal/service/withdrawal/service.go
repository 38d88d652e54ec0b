package withdrawal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// Request is a promoter's withdrawal input.
type Request struct {
	Amount         decimal.Decimal      `json:"amount"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	PaymentDetails map[string]string    `json:"payment_details"`
}

// Service runs the withdrawal state machine.
type Service struct {
	repo     Repository
	ledger   *ledger.Service
	notifier Notifier
	now      func() time.Time
}

// NewService creates a withdrawal service. notifier may be nil.
func NewService(repo Repository, ledgerSvc *ledger.Service, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledgerSvc,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RequestWithdrawal creates a pending request and reserves its amount.
func (s *Service) RequestWithdrawal(ctx context.Context, promoterID string, in Request) (*domain.WithdrawalRequest, error) {
	if err := domain.ValidateID("promoter_id", promoterID); err != nil {
		return nil, err
	}
	amount := in.Amount.RoundBank(2)
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := in.PaymentMethod.ValidateDetails(in.PaymentDetails); err != nil {
		return nil, err
	}

	now := s.now()
	w := &domain.WithdrawalRequest{
		ID:             uuid.NewString(),
		PromoterID:     promoterID,
		Amount:         amount,
		PaymentMethod:  in.PaymentMethod,
		PaymentDetails: trimDetails(in.PaymentDetails),
		Status:         domain.WithdrawalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.repo.InPromoterTx(ctx, promoterID, func(ctx context.Context, tx Tx) error {
		pending, err := tx.PendingWithdrawal(ctx, promoterID)
		if err != nil {
			return fmt.Errorf("check pending request: %w", err)
		}
		if pending != nil {
			return domain.ErrDuplicatePendingRequest
		}

		totals, err := s.ledger.CheckTx(ctx, tx, promoterID)
		if err != nil {
			return err
		}
		if available := totals.Available(); amount.GreaterThan(available) {
			return &domain.InsufficientFundsError{Requested: amount, Available: available}
		}

		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return err
		}
		_, err = s.ledger.CheckTx(ctx, tx, promoterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Invalidate(ctx, promoterID)

	logger.Info("[Withdrawal] requested", "withdrawal_id", w.ID, "promoter_id", promoterID,
		"amount", amount.StringFixed(2), "method", w.PaymentMethod)
	s.notify(ctx, w, domain.NotifyWithdrawalRequested, "Withdrawal requested",
		fmt.Sprintf("Your withdrawal of $%s is pending review.", amount.StringFixed(2)))
	return w, nil
}

// Approve moves a pending request to approved. No money moves.
func (s *Service) Approve(ctx context.Context, withdrawalID, adminID string) (*domain.WithdrawalRequest, error) {
	w, changed, err := s.mutate(ctx, withdrawalID, func(ctx context.Context, tx Tx, w *domain.WithdrawalRequest) (bool, error) {
		return true, s.advance(ctx, tx, w, domain.WithdrawalApproved, adminID, "")
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, w, domain.NotifyWithdrawalApproved, "Withdrawal approved",
			fmt.Sprintf("Your withdrawal of $%s was approved and is being processed.", w.Amount.StringFixed(2)))
	}
	return w, nil
}

// Reject moves a pending request to rejected, releasing its reservation.
func (s *Service) Reject(ctx context.Context, withdrawalID, adminID, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < domain.MinRejectionReasonLength {
		return nil, domain.Invalid("reason", fmt.Sprintf("must be at least %d characters", domain.MinRejectionReasonLength))
	}
	w, changed, err := s.mutate(ctx, withdrawalID, func(ctx context.Context, tx Tx, w *domain.WithdrawalRequest) (bool, error) {
		w.RejectionReason = reason
		return true, s.advance(ctx, tx, w, domain.WithdrawalRejected, adminID, reason)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, w, domain.NotifyWithdrawalRejected, "Withdrawal rejected",
			fmt.Sprintf("Your withdrawal of $%s was rejected: %s", w.Amount.StringFixed(2), reason))
	}
	return w, nil
}

// Complete records the payout and writes the only debit for the request.
// Completing an already-completed request returns it unchanged.
func (s *Service) Complete(ctx context.Context, withdrawalID, adminID, paymentReference string) (*domain.WithdrawalRequest, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if len(paymentReference) < domain.MinPaymentReferenceLength {
		return nil, domain.Invalid("payment_reference", fmt.Sprintf("must be at least %d characters", domain.MinPaymentReferenceLength))
	}
	w, changed, err := s.mutate(ctx, withdrawalID, func(ctx context.Context, tx Tx, w *domain.WithdrawalRequest) (bool, error) {
		if w.Status == domain.WithdrawalCompleted {
			return false, nil
		}
		now := s.now()
		w.CompletionReference = paymentReference
		w.CompletedAt = &now
		if err := s.advance(ctx, tx, w, domain.WithdrawalCompleted, adminID, paymentReference); err != nil {
			return false, err
		}
		_, err := s.ledger.DebitTx(ctx, tx, w.PromoterID, w.Amount, w.ID,
			fmt.Sprintf("withdrawal via %s (%s)", w.PaymentMethod, paymentReference))
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, w, domain.NotifyWithdrawalCompleted, "Withdrawal completed",
			fmt.Sprintf("$%s has been sent via %s.", w.Amount.StringFixed(2), w.PaymentMethod))
	} else {
		logger.Info("[Withdrawal] complete replay ignored", "withdrawal_id", withdrawalID, "admin_id", adminID)
	}
	return w, nil
}

// Reverse is the admin-only compensating action. An approved request is
// cancelled and its reservation released; a completed one gets a reversal
// entry returning the amount to the wallet.
func (s *Service) Reverse(ctx context.Context, withdrawalID, adminID, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < domain.MinRejectionReasonLength {
		return nil, domain.Invalid("reason", fmt.Sprintf("must be at least %d characters", domain.MinRejectionReasonLength))
	}
	w, changed, err := s.mutate(ctx, withdrawalID, func(ctx context.Context, tx Tx, w *domain.WithdrawalRequest) (bool, error) {
		if w.Status == domain.WithdrawalReversed {
			return false, nil
		}
		wasCompleted := w.Status == domain.WithdrawalCompleted
		w.ReversalReason = reason
		if err := s.advance(ctx, tx, w, domain.WithdrawalReversed, adminID, reason); err != nil {
			return false, err
		}
		if wasCompleted {
			if _, err := s.ledger.ReverseTx(ctx, tx, w.PromoterID, w.Amount, w.ID, "reversal: "+reason); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Warn("[Withdrawal] reversed", "withdrawal_id", withdrawalID, "promoter_id", w.PromoterID,
			"amount", w.Amount.StringFixed(2), "admin_id", adminID)
		s.notify(ctx, w, domain.NotifyWithdrawalReversed, "Withdrawal reversed",
			fmt.Sprintf("Your withdrawal of $%s was reversed: %s", w.Amount.StringFixed(2), reason))
	}
	return w, nil
}

// advance applies one checked transition inside tx.
func (s *Service) advance(ctx context.Context, tx Tx, w *domain.WithdrawalRequest, to domain.WithdrawalStatus, adminID, reason string) error {
	from := w.Status
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("withdrawal %s %s -> %s: %w", w.ID, from, to, domain.ErrInvalidTransition)
	}
	now := s.now()
	w.Status = to
	w.ReviewerID = adminID
	w.ReviewedAt = &now
	w.UpdatedAt = now
	if err := tx.UpdateWithdrawal(ctx, w, from, adminID, reason); err != nil {
		return err
	}
	logger.Info("[Withdrawal] status changed", "withdrawal_id", w.ID, "from", from, "to", to, "admin_id", adminID)
	return nil
}

// mutate re-reads the request under its promoter's lock and runs fn.
// The balance cache is invalidated when fn reports a change.
func (s *Service) mutate(ctx context.Context, withdrawalID string, fn func(ctx context.Context, tx Tx, w *domain.WithdrawalRequest) (bool, error)) (*domain.WithdrawalRequest, bool, error) {
	current, err := s.repo.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, false, err
	}

	var (
		out     *domain.WithdrawalRequest
		changed bool
	)
	err = s.repo.InPromoterTx(ctx, current.PromoterID, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		changed, err = fn(ctx, tx, w)
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.ledger.Invalidate(ctx, out.PromoterID)
	}
	return out, changed, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.repo.GetWithdrawal(ctx, withdrawalID)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.WithdrawalRequest, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.Invalid("status", "unknown withdrawal status")
	}
	return s.repo.ListWithdrawals(ctx, filter)
}

// Stats combines the promoter's wallet with request counts.
func (s *Service) Stats(ctx context.Context, promoterID string) (domain.WithdrawalStats, error) {
	balance, err := s.ledger.BalanceOf(ctx, promoterID)
	if err != nil {
		return domain.WithdrawalStats{}, err
	}
	counts, err := s.repo.CountWithdrawals(ctx, promoterID)
	if err != nil {
		return domain.WithdrawalStats{}, fmt.Errorf("count withdrawals: %w", err)
	}
	stats := domain.WithdrawalStats{
		AvailableBalance: balance.Available,
		PendingBalance:   balance.Pending,
		TotalWithdrawn:   balance.Withdrawn,
		PendingCount:     counts[domain.WithdrawalPending],
		CompletedCount:   counts[domain.WithdrawalApproved] + counts[domain.WithdrawalCompleted],
	}
	for _, n := range counts {
		stats.TotalCount += n
	}
	return stats, nil
}

func (s *Service) notify(ctx context.Context, w *domain.WithdrawalRequest, kind domain.NotificationKind, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		PromoterID:  w.PromoterID,
		Kind:        kind,
		Title:       title,
		Body:        body,
		ReferenceID: w.ID,
		OccurredAt:  s.now(),
	})
}

func trimDetails(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
