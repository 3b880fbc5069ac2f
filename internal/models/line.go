package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineKey is the composite key every source line is addressed by.
// Empty fields mean "not present" on a line, or "any" when used as a filter.
type LineKey struct {
	EntityID   string
	PeriodID   string
	FiscalYear string
	Account    string
}

// Normalize returns a copy of the key with every component trimmed.
func (k LineKey) Normalize() LineKey {
	return LineKey{
		EntityID:   strings.TrimSpace(k.EntityID),
		PeriodID:   strings.TrimSpace(k.PeriodID),
		FiscalYear: strings.TrimSpace(k.FiscalYear),
		Account:    strings.TrimSpace(k.Account),
	}
}

// Line is implemented by all three source line kinds.
type Line interface {
	LineKey() LineKey
	LineID() string
}

// ScheduleLine is one row of the prepayment amortization schedule.
type ScheduleLine struct {
	// ID is the line identifier assigned at ingestion (UUID format).
	// Duplicates are possible when the same row is ingested twice.
	ID string `json:"id"`

	// UploadID references the ingestion batch the line came from.
	UploadID string `json:"uploadId,omitempty"`

	EntityID     string `json:"entity"`
	FiscalYear   string `json:"fiscalYear"`
	FiscalPeriod string `json:"fiscalPeriod"`

	// ApplyDate is the posting date as delivered by the source (usually YYYY-MM-DD).
	ApplyDate string `json:"applyDate,omitempty"`

	// Account is the prepaid (balance sheet) account being amortized.
	Account string `json:"account"`

	// ExpenseAccount is the P&L account receiving the amortization.
	ExpenseAccount string `json:"expenseAccount,omitempty"`

	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`

	// PrepaidStartYear is the year the prepayment was originally booked.
	// Empty means the line's FiscalYear.
	PrepaidStartYear string `json:"prepaidStartYear,omitempty"`

	Description string `json:"headerDesc,omitempty"`
}

// LineKey implements Line.
func (l ScheduleLine) LineKey() LineKey {
	return LineKey{EntityID: l.EntityID, PeriodID: l.FiscalPeriod, FiscalYear: l.FiscalYear, Account: l.Account}.Normalize()
}

// LineID implements Line.
func (l ScheduleLine) LineID() string { return l.ID }

// AmountSigned is debit minus credit.
func (l ScheduleLine) AmountSigned() decimal.Decimal {
	return l.DebitAmount.Sub(l.CreditAmount)
}

// StartYear returns the prepaid start year, falling back to the fiscal year.
func (l ScheduleLine) StartYear() string {
	if y := strings.TrimSpace(l.PrepaidStartYear); y != "" {
		return y
	}
	return strings.TrimSpace(l.FiscalYear)
}

// TrialBalanceLine is one closing balance row of the trial balance.
type TrialBalanceLine struct {
	ID           string `json:"id"`
	UploadID     string `json:"uploadId,omitempty"`
	EntityID     string `json:"entity"`
	FiscalYear   string `json:"fiscalYear"`
	FiscalPeriod string `json:"fiscalPeriod"`
	Account      string `json:"account"`

	// AccountDesc is informational only.
	AccountDesc string `json:"accountDesc,omitempty"`

	// ClosingBalance is signed (debit positive).
	ClosingBalance decimal.Decimal `json:"closingBalanceSigned"`
}

// LineKey implements Line.
func (l TrialBalanceLine) LineKey() LineKey {
	return LineKey{EntityID: l.EntityID, PeriodID: l.FiscalPeriod, FiscalYear: l.FiscalYear, Account: l.Account}.Normalize()
}

// LineID implements Line.
func (l TrialBalanceLine) LineID() string { return l.ID }

// WorkingLine is one PPREC movement row: the per-period opening,
// additions and amortization summary for one prepaid account.
type WorkingLine struct {
	ID             string `json:"id"`
	UploadID       string `json:"uploadId,omitempty"`
	EntityID       string `json:"entity"`
	FiscalYear     string `json:"fiscalYear"`
	FiscalPeriod   string `json:"fiscalPeriod"`
	PrepaidAccount string `json:"prepaidAccount"`

	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Additions      decimal.Decimal `json:"additions"`

	// Amortization is optional. When absent the engine derives it from
	// the schedule lines of the same account and period.
	Amortization decimal.NullDecimal `json:"amortization"`
}

// LineKey implements Line.
func (l WorkingLine) LineKey() LineKey {
	return LineKey{EntityID: l.EntityID, PeriodID: l.FiscalPeriod, FiscalYear: l.FiscalYear, Account: l.PrepaidAccount}.Normalize()
}

// LineID implements Line.
func (l WorkingLine) LineID() string { return l.ID }
