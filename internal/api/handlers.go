package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/service/analytics"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/recorder"
	"github.com/ignite/affiliate-ledger/internal/service/review"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// Services bundles the domain services the HTTP layer calls.
type Services struct {
	Recorder    *recorder.Service
	Commissions *commission.Service
	Ledger      *ledger.Service
	Withdrawals *withdrawal.Service
	Review      *review.Service
	Analytics   *analytics.Service
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	recorder    *recorder.Service
	commissions *commission.Service
	ledger      *ledger.Service
	withdrawals *withdrawal.Service
	review      *review.Service
	analytics   *analytics.Service
	health      *HealthChecker
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, health *HealthChecker) *Handlers {
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	return &Handlers{
		recorder:    svc.Recorder,
		commissions: svc.Commissions,
		ledger:      svc.Ledger,
		withdrawals: svc.Withdrawals,
		review:      svc.Review,
		analytics:   svc.Analytics,
		health:      health,
	}
}

// currentPromoter returns the authenticated caller, failing for anonymous
// requests.
func currentPromoter(r *http.Request) (domain.Actor, error) {
	actor := auth.ActorFromContext(r.Context())
	if actor.Anonymous() {
		return actor, domain.ErrUnauthorized
	}
	return actor, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func commissionStatusParam(r *http.Request) (domain.CommissionStatus, error) {
	s := domain.CommissionStatus(r.URL.Query().Get("status"))
	if s != "" && !s.Valid() {
		return "", domain.Invalid("status", "unknown commission status")
	}
	return s, nil
}

func withdrawalStatusParam(r *http.Request) (domain.WithdrawalStatus, error) {
	s := domain.WithdrawalStatus(r.URL.Query().Get("status"))
	if s != "" && !s.Valid() {
		return "", domain.Invalid("status", "unknown withdrawal status")
	}
	return s, nil
}
