package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle state of a Reconciliation.
type ReconciliationStatus string

const (
	StatusOpen           ReconciliationStatus = "OPEN"
	StatusClosed         ReconciliationStatus = "CLOSED"
	StatusPendingChecker ReconciliationStatus = "PENDING_CHECKER"
	StatusReopened       ReconciliationStatus = "REOPENED"
)

// Valid reports whether s is one of the known statuses.
func (s ReconciliationStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusPendingChecker, StatusReopened:
		return true
	}
	return false
}

// Reconciliation is the computed unit of work for one
// (entity, period, prepaid account) triple.
//
// Invariants after every recompute:
//   - FinalDifference == Difference - ReconEntries (both null when GLBalance is null)
//   - Status == CLOSED iff FinalDifference is known and |FinalDifference| <= ToleranceUsed,
//     unless an adjustment is pending, in which case Status == PENDING_CHECKER
type Reconciliation struct {
	// ID is the unique identifier (UUID format). Stable across recomputes.
	ID string `json:"id"`

	EntityID       string `json:"entityId"`
	FiscalYear     string `json:"fiscalYear"`
	PeriodID       string `json:"periodId"`
	PrepaidAccount string `json:"prepaidAccount"`

	// Movement figures: ExpectedClosing = OpeningBalance + Additions - Amortization.
	OpeningBalance  decimal.Decimal `json:"openingBalance"`
	Additions       decimal.Decimal `json:"additions"`
	Amortization    decimal.Decimal `json:"amortization"`
	ExpectedClosing decimal.Decimal `json:"expectedClosing"`

	// BeginInYear holds the residual prepaid balance per booking year,
	// keyed by the four digit year.
	BeginInYear map[string]decimal.Decimal `json:"beginInYear"`

	// TotalSubsystem is the sum of BeginInYear. It is the basis for variance.
	TotalSubsystem decimal.Decimal `json:"totalSubsystem"`

	// SubsystemDivergence is ExpectedClosing - TotalSubsystem. Non-zero values
	// are surfaced in evidence; they are never folded into the variance.
	SubsystemDivergence decimal.Decimal `json:"subsystemDivergence"`

	// GLBalance is the trial balance closing figure; null when no TB row matched.
	GLBalance decimal.NullDecimal `json:"glBalance"`

	// Difference is TotalSubsystem - GLBalance.
	Difference decimal.NullDecimal `json:"difference"`

	// ReconEntries is the sum of approved adjustment impacts.
	ReconEntries decimal.Decimal `json:"reconEntries"`

	// FinalDifference is Difference - ReconEntries.
	FinalDifference decimal.NullDecimal `json:"finalDifference"`

	// ExpectedClosingAdjusted is TotalSubsystem + ReconEntries.
	ExpectedClosingAdjusted decimal.Decimal `json:"expectedClosingAdjusted"`

	// Variance is GLBalance - ExpectedClosingAdjusted.
	Variance decimal.NullDecimal `json:"variance"`

	ToleranceUsed decimal.Decimal      `json:"toleranceUsed"`
	Status        ReconciliationStatus `json:"status"`

	// Version starts at 1 and is incremented by every write.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// Key returns the triple this record reconciles. FiscalYear is not part of
// the identity of a record.
func (r *Reconciliation) Key() LineKey {
	return LineKey{EntityID: r.EntityID, PeriodID: r.PeriodID, Account: r.PrepaidAccount}.Normalize()
}

// MarshalJSON adds actualClosing, the name older consumers read for the
// GL balance.
func (r Reconciliation) MarshalJSON() ([]byte, error) {
	type plain Reconciliation
	return json.Marshal(struct {
		plain
		ActualClosing decimal.NullDecimal `json:"actualClosing"`
	}{plain(r), r.GLBalance})
}

// IsDeleted reports whether the record has been soft-deleted.
func (r *Reconciliation) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy safe to mutate.
func (r *Reconciliation) Clone() *Reconciliation {
	if r == nil {
		return nil
	}
	c := *r
	if r.BeginInYear != nil {
		c.BeginInYear = make(map[string]decimal.Decimal, len(r.BeginInYear))
		for y, v := range r.BeginInYear {
			c.BeginInYear[y] = v
		}
	}
	if r.DeletedAt != nil {
		d := *r.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}
