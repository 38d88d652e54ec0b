package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType selects how a promotion pays its promoter.
type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
)

// CommissionStatus is the lifecycle state of an AffiliateSale's commission.
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionApproved CommissionStatus = "approved"
	CommissionPaid     CommissionStatus = "paid"
	CommissionRejected CommissionStatus = "rejected"
)

var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionPending:  {CommissionApproved, CommissionRejected},
	CommissionApproved: {CommissionPaid, CommissionRejected},
}

// Valid reports whether s is a known status.
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionPending, CommissionApproved, CommissionPaid, CommissionRejected:
		return true
	}
	return false
}

// IsTerminal returns true for paid and rejected.
func (s CommissionStatus) IsTerminal() bool {
	return s == CommissionPaid || s == CommissionRejected
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	for _, allowed := range commissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CommissionRule is the rule captured on a promotion when the promoter
// linked their content to a product.
type CommissionRule struct {
	PromotionID string           `json:"promotion_id"`
	ProductID   string           `json:"product_id"`
	PromoterID  string           `json:"promoter_id"`
	Type        CommissionType   `json:"commission_type"`
	Rate        *decimal.Decimal `json:"commission_rate,omitempty"`
	Amount      *decimal.Decimal `json:"commission_amount,omitempty"`
	Official    bool             `json:"is_official"`
}

// Order is the slice of an order the calculator needs.
type Order struct {
	OrderID string      `json:"order_id"`
	BuyerID string      `json:"buyer_id"`
	Lines   []OrderLine `json:"lines"`
}

// OrderLine is one product on an order.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineFor returns the line for productID, if the order has one.
func (o *Order) LineFor(productID string) (OrderLine, bool) {
	for _, l := range o.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return OrderLine{}, false
}

// SaleAmount is unit price times quantity.
func (l OrderLine) SaleAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AffiliateSale is the materialized result of processing one conversion.
// Every conversion produces exactly one, attributed or not.
type AffiliateSale struct {
	ID               string           `json:"id" db:"id"`
	OrderID          string           `json:"order_id" db:"order_id"`
	ClickSessionID   string           `json:"click_session_id" db:"click_session_id"`
	ProductID        string           `json:"product_id,omitempty" db:"product_id"`
	PromotionID      string           `json:"promotion_id,omitempty" db:"promotion_id"`
	BuyerID          string           `json:"buyer_id,omitempty" db:"buyer_id"`
	PromoterID       string           `json:"promoter_id,omitempty" db:"promoter_id"`
	SaleAmount       decimal.Decimal  `json:"sale_amount" db:"sale_amount"`
	ProductPrice     decimal.Decimal  `json:"product_price" db:"product_price"`
	Quantity         int              `json:"quantity" db:"quantity"`
	CommissionType   CommissionType   `json:"commission_type,omitempty" db:"commission_type"`
	CommissionRate   decimal.Decimal  `json:"commission_rate" db:"commission_rate"`
	CommissionAmount decimal.Decimal  `json:"commission_amount" db:"commission_amount"`
	CommissionStatus CommissionStatus `json:"commission_status" db:"commission_status"`
	RejectionReason  string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewerID       string           `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	PaidAt           *time.Time       `json:"paid_at,omitempty" db:"paid_at"`
	PaymentReference string           `json:"payment_reference,omitempty" db:"payment_reference"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Attributed reports whether a promoter was credited with the sale.
func (s *AffiliateSale) Attributed() bool { return s.PromoterID != "" }

// SaleChange carries the fields written alongside a commission transition.
type SaleChange struct {
	ReviewerID       string
	Reason           string
	PaymentReference string
	At               time.Time
}

// Apply moves the sale to status next and stamps the review fields.
// It does not check the transition; callers do that first.
// CreationAudit returns the audit entry owed by a sale that is rejected as
// it is created, such as an unattributed conversion. Such a sale is logged
// as a pending to rejected transition.
func (s *AffiliateSale) CreationAudit() (AuditEntry, bool) {
	if s.CommissionStatus != CommissionRejected {
		return AuditEntry{}, false
	}
	at := s.CreatedAt
	if s.ReviewedAt != nil {
		at = *s.ReviewedAt
	}
	return AuditEntry{
		EntityType: AuditSale,
		EntityID:   s.ID,
		FromStatus: string(CommissionPending),
		ToStatus:   string(CommissionRejected),
		ActorID:    s.ReviewerID,
		Reason:     s.RejectionReason,
		CreatedAt:  at,
	}, true
}

func (s *AffiliateSale) Apply(next CommissionStatus, c SaleChange) {
	s.CommissionStatus = next
	s.ReviewerID = c.ReviewerID
	at := c.At
	s.ReviewedAt = &at
	s.UpdatedAt = at
	switch next {
	case CommissionRejected:
		s.RejectionReason = c.Reason
	case CommissionPaid:
		s.PaidAt = &at
		s.PaymentReference = c.PaymentReference
	}
}
