package review

import (
	"context"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// Service authorizes admin actions and forwards them.
type Service struct {
	commissions *commission.Service
	withdrawals *withdrawal.Service
	ledger      *ledger.Service
}

// NewService creates the admin review surface.
func NewService(commissions *commission.Service, withdrawals *withdrawal.Service, ledgerSvc *ledger.Service) *Service {
	return &Service{commissions: commissions, withdrawals: withdrawals, ledger: ledgerSvc}
}

// RequireAdmin fails with ErrUnauthorized for anonymous callers and
// ErrForbidden for non-admins.
func RequireAdmin(actor domain.Actor) error {
	if actor.Anonymous() {
		return domain.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		logger.Warn("[Review] non-admin attempted admin action", "actor_id", actor.ID, "role", actor.Role)
		return domain.ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin lets promoters read their own wallet and admins any.
func RequireOwnerOrAdmin(actor domain.Actor, promoterID string) error {
	if actor.Anonymous() {
		return domain.ErrUnauthorized
	}
	if actor.Owns(promoterID) || actor.IsAdmin() {
		return nil
	}
	return domain.ErrForbidden
}

// ListWithdrawals lists requests across promoters, pending by default.
func (s *Service) ListWithdrawals(ctx context.Context, actor domain.Actor, filter withdrawal.ListFilter) ([]domain.WithdrawalRequest, int, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, 0, err
	}
	if filter.Status == "" {
		filter.Status = domain.WithdrawalPending
	}
	return s.withdrawals.List(ctx, filter)
}

// GetWithdrawal returns one request.
func (s *Service) GetWithdrawal(ctx context.Context, actor domain.Actor, id string) (*domain.WithdrawalRequest, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withdrawals.Get(ctx, id)
}

func (s *Service) ApproveWithdrawal(ctx context.Context, actor domain.Actor, id string) (*domain.WithdrawalRequest, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withdrawals.Approve(ctx, id, actor.ID)
}

func (s *Service) RejectWithdrawal(ctx context.Context, actor domain.Actor, id, reason string) (*domain.WithdrawalRequest, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withdrawals.Reject(ctx, id, actor.ID, reason)
}

func (s *Service) CompleteWithdrawal(ctx context.Context, actor domain.Actor, id, paymentReference string) (*domain.WithdrawalRequest, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withdrawals.Complete(ctx, id, actor.ID, paymentReference)
}

func (s *Service) ReverseWithdrawal(ctx context.Context, actor domain.Actor, id, reason string) (*domain.WithdrawalRequest, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.withdrawals.Reverse(ctx, id, actor.ID, reason)
}

// ListSales lists sales across promoters.
func (s *Service) ListSales(ctx context.Context, actor domain.Actor, filter commission.ListFilter) ([]domain.AffiliateSale, int, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.commissions.List(ctx, filter)
}

func (s *Service) ApproveCommission(ctx context.Context, actor domain.Actor, saleID string) (*domain.AffiliateSale, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.commissions.Approve(ctx, saleID, actor.ID)
}

func (s *Service) RejectCommission(ctx context.Context, actor domain.Actor, saleID, reason string) (*domain.AffiliateSale, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.commissions.Reject(ctx, saleID, actor.ID, reason)
}

func (s *Service) MarkCommissionPaid(ctx context.Context, actor domain.Actor, saleID, paymentReference string) (*domain.AffiliateSale, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.commissions.MarkPaid(ctx, saleID, actor.ID, paymentReference)
}

// Wallet returns any promoter's derived balance.
func (s *Service) Wallet(ctx context.Context, actor domain.Actor, promoterID string) (domain.Balance, error) {
	if err := RequireOwnerOrAdmin(actor, promoterID); err != nil {
		return domain.Balance{}, err
	}
	return s.ledger.BalanceOf(ctx, promoterID)
}

// Reconcile replays one promoter's ledger and refreshes the cache.
func (s *Service) Reconcile(ctx context.Context, actor domain.Actor, promoterID string) (domain.Balance, error) {
	if err := RequireAdmin(actor); err != nil {
		return domain.Balance{}, err
	}
	logger.Info("[Review] reconcile requested", "promoter_id", promoterID, "actor_id", actor.ID)
	return s.ledger.Rebuild(ctx, promoterID)
}
