package api

import (
	"errors"
	"net/http"

	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// =============================================================================
// ERROR MAPPING
// Every service error reaches the client through respondError. Domain
// sentinels map to 4xx codes with a machine-readable code; anything else is
// logged and answered with a generic 500 so storage details never leak.
// =============================================================================

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrDuplicateSession, http.StatusConflict, "duplicate_session"},
	{domain.ErrDuplicateConversion, http.StatusConflict, "duplicate_conversion"},
	{domain.ErrDuplicatePendingRequest, http.StatusConflict, "duplicate_pending_request"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_failed", verr.Error(),
			map[string]string{"field": verr.Field, "reason": verr.Reason})
		return
	}

	var ferr *domain.InsufficientFundsError
	if errors.As(err, &ferr) {
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "insufficient_funds", ferr.Error(),
			map[string]string{
				"requested": ferr.Requested.StringFixed(2),
				"available": ferr.Available.StringFixed(2),
			})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			httputil.ErrorCode(w, m.status, m.code, m.target.Error(), nil)
			return
		}
	}

	if errors.Is(err, domain.ErrInternalInconsistency) {
		logger.Error("[API] ledger inconsistency", "path", r.URL.Path, "error", err)
		httputil.ErrorCode(w, http.StatusInternalServerError, "internal_inconsistency",
			"the wallet is under review, please contact support", nil)
		return
	}

	logger.Error("[API] request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	httputil.ErrorCode(w, http.StatusInternalServerError, "internal", "an internal error occurred", nil)
}
