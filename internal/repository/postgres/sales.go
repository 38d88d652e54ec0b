package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
)

// SaleRepo implements commission.Repository against materialized.affiliate_sales.
type SaleRepo struct{ s *Store }

const saleColumns = `
	id, order_id, click_session_id, COALESCE(product_id, ''), COALESCE(promotion_id, ''),
	COALESCE(buyer_id, ''), COALESCE(promoter_id, ''), sale_amount, product_price, quantity,
	COALESCE(commission_type, ''), commission_rate, commission_amount, commission_status,
	COALESCE(rejection_reason, ''), COALESCE(reviewer_id, ''), reviewed_at, paid_at,
	COALESCE(payment_reference, ''), created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.AffiliateSale, error) {
	s := &domain.AffiliateSale{}
	err := row.Scan(
		&s.ID, &s.OrderID, &s.ClickSessionID, &s.ProductID, &s.PromotionID,
		&s.BuyerID, &s.PromoterID, &s.SaleAmount, &s.ProductPrice, &s.Quantity,
		&s.CommissionType, &s.CommissionRate, &s.CommissionAmount, &s.CommissionStatus,
		&s.RejectionReason, &s.ReviewerID, &s.ReviewedAt, &s.PaidAt,
		&s.PaymentReference, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func getSale(ctx context.Context, q querier, clause string, arg any) (*domain.AffiliateSale, error) {
	s, err := scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM materialized.affiliate_sales `+clause, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

func (r *SaleRepo) CreateSale(ctx context.Context, sale *domain.AffiliateSale) (*domain.AffiliateSale, bool, error) {
	created := false
	err := r.s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `
			INSERT INTO materialized.affiliate_sales
				(id, order_id, click_session_id, product_id, promotion_id, buyer_id, promoter_id,
				 sale_amount, product_price, quantity, commission_type, commission_rate,
				 commission_amount, commission_status, rejection_reason, reviewer_id, reviewed_at,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (order_id) DO NOTHING
		`, sale.ID, sale.OrderID, sale.ClickSessionID, nullString(sale.ProductID), nullString(sale.PromotionID),
			nullString(sale.BuyerID), nullString(sale.PromoterID), sale.SaleAmount, sale.ProductPrice, sale.Quantity,
			nullString(string(sale.CommissionType)), sale.CommissionRate, sale.CommissionAmount, sale.CommissionStatus,
			nullString(sale.RejectionReason), nullString(sale.ReviewerID), sale.ReviewedAt,
			sale.CreatedAt, sale.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		created = true
		if entry, ok := sale.CreationAudit(); ok {
			return insertAudit(ctx, tx.tx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		stored, err := r.GetSaleByOrder(ctx, sale.OrderID)
		return stored, false, err
	}
	out := *sale
	return &out, true, nil
}

func (r *SaleRepo) GetSale(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	return getSale(ctx, r.s.db, `WHERE id = $1`, id)
}

func (r *SaleRepo) GetSaleByOrder(ctx context.Context, orderID string) (*domain.AffiliateSale, error) {
	return getSale(ctx, r.s.db, `WHERE order_id = $1`, orderID)
}

func (r *SaleRepo) ListSales(ctx context.Context, f commission.ListFilter) ([]domain.AffiliateSale, int, error) {
	var w where
	if f.PromoterID != "" {
		w.add("promoter_id = $%d", f.PromoterID)
	}
	if f.Status != "" {
		w.add("commission_status = $%d", f.Status)
	}

	var total int
	if err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM materialized.affiliate_sales`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	limit, args := w.page(f.Limit, f.Skip)
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+saleColumns+` FROM materialized.affiliate_sales`+
		w.String()+` ORDER BY created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := []domain.AffiliateSale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *SaleRepo) SummarizeSales(ctx context.Context, promoterID string, since time.Time) (domain.SaleSummary, error) {
	sum := domain.SaleSummary{
		Count:  make(map[domain.CommissionStatus]int),
		Amount: make(map[domain.CommissionStatus]decimal.Decimal),
	}
	rows, err := r.s.db.QueryContext(ctx, `
		SELECT commission_status, COUNT(*), COALESCE(SUM(commission_amount), 0)
		FROM materialized.affiliate_sales
		WHERE promoter_id = $1 AND created_at >= $2
		GROUP BY commission_status
	`, promoterID, since)
	if err != nil {
		return sum, fmt.Errorf("summarize sales: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status domain.CommissionStatus
			n      int
			amount decimal.Decimal
		)
		if err := rows.Scan(&status, &n, &amount); err != nil {
			return sum, fmt.Errorf("scan sale summary: %w", err)
		}
		sum.Count[status] = n
		sum.Amount[status] = amount
	}
	return sum, rows.Err()
}

func (r *SaleRepo) TransitionSale(ctx context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error) {
	var out *domain.AffiliateSale
	err := r.s.inTx(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		out, err = tx.TransitionSale(ctx, id, from, to, change)
		return err
	})
	return out, err
}

func (r *SaleRepo) InPromoterTx(ctx context.Context, promoterID string, fn func(ctx context.Context, tx commission.Tx) error) error {
	return r.s.inPromoterTx(ctx, promoterID, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

// TransitionSale locks the row, checks the current status and writes the
// new one with its audit entry.
func (tx *Tx) TransitionSale(ctx context.Context, id string, from, to domain.CommissionStatus, change domain.SaleChange) (*domain.AffiliateSale, error) {
	sale, err := getSale(ctx, tx.tx, `WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if sale.CommissionStatus != from {
		return nil, domain.ErrInvalidTransition
	}
	sale.Apply(to, change)

	_, err = tx.tx.ExecContext(ctx, `
		UPDATE materialized.affiliate_sales
		SET commission_status = $2, reviewer_id = $3, reviewed_at = $4, rejection_reason = $5,
		    paid_at = $6, payment_reference = $7, updated_at = $8
		WHERE id = $1
	`, id, sale.CommissionStatus, nullString(sale.ReviewerID), sale.ReviewedAt, nullString(sale.RejectionReason),
		sale.PaidAt, nullString(sale.PaymentReference), sale.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update sale status: %w", err)
	}

	if err := insertAudit(ctx, tx.tx, domain.AuditEntry{
		EntityType: domain.AuditSale,
		EntityID:   id,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorID:    change.ReviewerID,
		Reason:     change.Reason,
		CreatedAt:  change.At,
	}); err != nil {
		return nil, err
	}
	return sale, nil
}
