// Package models defines the core domain models for prepaid reconciliation.
//
// # Source lines
//
// Three kinds of normalized lines arrive from ingestion and are never mutated
// afterwards:
//   - ScheduleLine: one amortization schedule row
//   - TrialBalanceLine: one closing balance row from the trial balance
//   - WorkingLine: one PPREC movement row (opening, additions, amortization)
//
// All three are addressed by a LineKey (entity, period, fiscal year, account).
//
// # Computed state
//
//   - Reconciliation: one computed record per (entity, period, prepaid account)
//   - AdjustmentEntry: a maker-proposed correcting entry against a record
//   - ApprovalEvent: append-only history of propose/approve/reject actions
//
// # Design Principles
//
// 1. **Decimals for money**: every amount is a decimal.Decimal; balances that
// may be unknown use decimal.NullDecimal so "unknown" never collapses into zero.
// 2. **IDs, not pointers**: records and entries reference each other by ID.
// 3. **Trimmed strings for identifiers**: entity, period, year and account are
// compared as trimmed strings, never as numbers.
package models
