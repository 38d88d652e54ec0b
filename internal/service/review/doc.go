// Package review is the admin surface over commissions and withdrawals.
// It adds authorization to every call and otherwise delegates.
package review
