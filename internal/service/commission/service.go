package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/service/attribution"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
)

// SystemActor is recorded as the reviewer of sales rejected automatically.
const SystemActor = "system"

// Resolver attributes conversions to clicks.
type Resolver interface {
	Resolve(ctx context.Context, conv domain.ConversionEvent) (attribution.Outcome, error)
}

// Service prices conversions and runs the commission review lifecycle.
type Service struct {
	repo       Repository
	resolver   Resolver
	catalog    Catalog
	ledger     *ledger.Service
	notifier   Notifier
	minorUnits int32
	now        func() time.Time
}

// Config carries the collaborators of a Service.
type Config struct {
	Repo       Repository
	Resolver   Resolver
	Catalog    Catalog
	Ledger     *ledger.Service
	Notifier   Notifier
	MinorUnits int32
}

// NewService creates a commission service.
func NewService(cfg Config) *Service {
	if cfg.MinorUnits == 0 {
		cfg.MinorUnits = 2
	}
	return &Service{
		repo:       cfg.Repo,
		resolver:   cfg.Resolver,
		catalog:    cfg.Catalog,
		ledger:     cfg.Ledger,
		notifier:   cfg.Notifier,
		minorUnits: cfg.MinorUnits,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Process attributes and prices one conversion and records the resulting
// sale. Calling it again for the same order returns the stored sale.
// Transient collaborator failures are returned so the caller can retry.
func (s *Service) Process(ctx context.Context, conv domain.ConversionEvent) (*domain.AffiliateSale, error) {
	existing, err := s.repo.GetSaleByOrder(ctx, conv.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup sale for order %s: %w", conv.OrderID, err)
	}

	outcome, err := s.resolver.Resolve(ctx, conv)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sale := &domain.AffiliateSale{
		ID:               uuid.NewString(),
		OrderID:          conv.OrderID,
		ClickSessionID:   conv.ClickSessionID,
		CommissionStatus: domain.CommissionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if outcome.Attributed {
		if err := s.price(ctx, sale, outcome.Click); err != nil {
			return nil, err
		}
	} else {
		if outcome.Click != nil {
			sale.ProductID = outcome.Click.ProductID
		}
		s.autoReject(sale, "unattributed: "+string(outcome.Miss))
	}

	stored, created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("create sale for order %s: %w", conv.OrderID, err)
	}
	if created {
		logger.Info("[Commission] sale recorded",
			"sale_id", stored.ID, "order_id", stored.OrderID, "promoter_id", stored.PromoterID,
			"status", stored.CommissionStatus, "commission", stored.CommissionAmount.StringFixed(2),
			"reason", stored.RejectionReason)
	}
	return stored, nil
}

// price fills in the order and commission fields of an attributed sale.
// Permanent lookup failures reject the sale; transient ones are returned.
func (s *Service) price(ctx context.Context, sale *domain.AffiliateSale, click *domain.ClickEvent) error {
	sale.PromoterID = click.PromoterID
	sale.ProductID = click.ProductID

	order, err := s.catalog.Order(ctx, sale.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		s.autoReject(sale, "order not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch order %s: %w", sale.OrderID, err)
	}
	sale.BuyerID = order.BuyerID

	line, ok := order.LineFor(click.ProductID)
	if !ok {
		s.autoReject(sale, "order has no line for the promoted product")
		return nil
	}
	sale.ProductPrice = line.UnitPrice
	sale.Quantity = line.Quantity
	sale.SaleAmount = line.SaleAmount()

	rule, err := s.catalog.CommissionRule(ctx, click.ProductID, click.PromoterID)
	if errors.Is(err, domain.ErrNotFound) {
		s.autoReject(sale, "promotion no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch commission rule for %s: %w", click.ProductID, err)
	}
	sale.PromotionID = rule.PromotionID
	sale.CommissionType = rule.Type

	calc, err := Calculate(rule, line, s.minorUnits)
	if err != nil {
		s.autoReject(sale, err.Error())
		return nil
	}
	sale.CommissionRate = calc.Rate
	sale.CommissionAmount = calc.Amount
	return nil
}

func (s *Service) autoReject(sale *domain.AffiliateSale, reason string) {
	sale.CommissionAmount = decimal.Zero
	sale.Apply(domain.CommissionRejected, domain.SaleChange{
		ReviewerID: SystemActor,
		Reason:     reason,
		At:         s.now(),
	})
}

// Get returns one sale.
func (s *Service) Get(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	return s.repo.GetSale(ctx, id)
}

// List returns sales matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.AffiliateSale, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.Invalid("status", "unknown commission status")
	}
	return s.repo.ListSales(ctx, filter)
}

// Summary aggregates a promoter's sales over the trailing days.
func (s *Service) Summary(ctx context.Context, promoterID string, days int) (domain.SaleSummary, error) {
	return s.repo.SummarizeSales(ctx, promoterID, s.now().AddDate(0, 0, -days))
}

// Approve moves a pending commission to approved.
func (s *Service) Approve(ctx context.Context, saleID, reviewerID string) (*domain.AffiliateSale, error) {
	return s.transition(ctx, saleID, domain.CommissionPending, domain.CommissionApproved, domain.SaleChange{ReviewerID: reviewerID})
}

// Reject moves a pending or approved commission to rejected.
func (s *Service) Reject(ctx context.Context, saleID, reviewerID, reason string) (*domain.AffiliateSale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Invalid("reason", "is required")
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, saleID, sale.CommissionStatus, domain.CommissionRejected, domain.SaleChange{ReviewerID: reviewerID, Reason: reason})
}

func (s *Service) transition(ctx context.Context, saleID string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("sale %s %s -> %s: %w", saleID, from, to, domain.ErrInvalidTransition)
	}
	change.At = s.now()
	sale, err := s.repo.TransitionSale(ctx, saleID, from, to, change)
	if err != nil {
		return nil, err
	}
	logger.Info("[Commission] status changed", "sale_id", saleID, "from", from, "to", to, "reviewer_id", change.ReviewerID)
	return sale, nil
}

// MarkPaid moves an approved commission to paid and credits the promoter's
// wallet in the same transaction. Marking a paid sale again is a no-op.
func (s *Service) MarkPaid(ctx context.Context, saleID, reviewerID, paymentReference string) (*domain.AffiliateSale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.CommissionStatus == domain.CommissionPaid {
		return sale, nil
	}
	if sale.CommissionStatus != domain.CommissionApproved || !sale.Attributed() {
		return nil, fmt.Errorf("sale %s %s -> %s: %w", saleID, sale.CommissionStatus, domain.CommissionPaid, domain.ErrInvalidTransition)
	}

	change := domain.SaleChange{
		ReviewerID:       reviewerID,
		PaymentReference: strings.TrimSpace(paymentReference),
		At:               s.now(),
	}
	var paid *domain.AffiliateSale
	err = s.repo.InPromoterTx(ctx, sale.PromoterID, func(ctx context.Context, tx Tx) error {
		updated, err := tx.TransitionSale(ctx, saleID, domain.CommissionApproved, domain.CommissionPaid, change)
		if err != nil {
			return err
		}
		if _, err := s.ledger.CreditTx(ctx, tx, updated.PromoterID, updated.CommissionAmount, updated.ID,
			"commission for order "+updated.OrderID); err != nil {
			return err
		}
		paid = updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark sale %s paid: %w", saleID, err)
	}
	s.ledger.Invalidate(ctx, paid.PromoterID)

	logger.Info("[Commission] commission paid", "sale_id", saleID, "promoter_id", paid.PromoterID,
		"amount", paid.CommissionAmount.StringFixed(2), "reviewer_id", reviewerID)
	s.notify(ctx, domain.Notification{
		PromoterID:  paid.PromoterID,
		Kind:        domain.NotifyCommissionPaid,
		Title:       "Commission paid",
		Body:        fmt.Sprintf("$%s commission for order %s was added to your wallet.", paid.CommissionAmount.StringFixed(2), paid.OrderID),
		ReferenceID: paid.ID,
		OccurredAt:  change.At,
	})
	return paid, nil
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}
