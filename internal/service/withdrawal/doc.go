// Package withdrawal implements the promoter withdrawal workflow.
//
//	pending ──approve──▶ approved ──complete──▶ completed
//	   │                    │                      │
//	 reject              reverse                reverse
//	   ▼                    ▼                      ▼
//	rejected             reversed               reversed
//
// A pending or approved request reserves its amount: it is excluded from
// the available balance but no ledger entry exists until completion, which
// writes the single debit. Reversal is an admin-only compensating action.
// Every mutation runs inside one per-promoter transaction, so concurrent
// requests or a racing complete and reject cannot both succeed.
package withdrawal
