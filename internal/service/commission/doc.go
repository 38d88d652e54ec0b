// Package commission implements the Commission Calculator and the
// commission review lifecycle.
//
// Process turns one ConversionEvent into exactly one AffiliateSale. An
// attributed sale with a valid promotion rule starts pending. Any other
// case (attribution miss, vanished order or promotion, malformed rule)
// is still recorded, as rejected with a reason, so every conversion
// leaves an auditable row. The order id is the idempotency key.
//
// Review moves a sale through pending → approved → paid, or to rejected.
// The approved → paid step credits the promoter's wallet in the same
// per-promoter transaction as the status change.
package commission
