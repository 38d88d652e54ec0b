// Package ledger implements the promoter Wallet Ledger.
//
// The ledger is an append-only log of WalletTransaction entries. Balances
// are never stored as the authority: they are folded from the log plus the
// amounts held by open withdrawal requests, optionally cached, and always
// rebuildable by replay.
//
// Writes happen inside a per-promoter transaction supplied by the Store so
// that callers in other packages (commission payout, withdrawal
// completion) can couple a status change and its ledger entry atomically.
// Every write is idempotent on (type, referenceId).
package ledger
