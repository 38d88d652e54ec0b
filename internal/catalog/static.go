package catalog

import (
	"context"
	"sync"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

// Static is an in-memory catalog for the dev server and tests.
type Static struct {
	mu     sync.RWMutex
	rules  map[string]domain.CommissionRule
	orders map[string]domain.Order
}

// NewStatic returns an empty static catalog.
func NewStatic() *Static {
	return &Static{
		rules:  make(map[string]domain.CommissionRule),
		orders: make(map[string]domain.Order),
	}
}

func ruleKey(productID, promoterID string) string { return productID + "\x00" + promoterID }

// PutRule registers a promotion rule.
func (s *Static) PutRule(r domain.CommissionRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[ruleKey(r.ProductID, r.PromoterID)] = r
}

// RemoveRule deletes a promotion rule.
func (s *Static) RemoveRule(productID, promoterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, ruleKey(productID, promoterID))
}

// PutOrder registers an order.
func (s *Static) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
}

func (s *Static) CommissionRule(_ context.Context, productID, promoterID string) (*domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[ruleKey(productID, promoterID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *Static) Order(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}
