package commission

import "errors"

// Sentinel errors for the commission service layer. Both end up as the
// rejection reason on the sale rather than being returned to callers.
var (
	ErrMalformedRule = errors.New("malformed commission rule")
	ErrNoCommission  = errors.New("no commission payable")
)
