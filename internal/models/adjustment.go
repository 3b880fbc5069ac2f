package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentStatus is the maker/checker state of an AdjustmentEntry.
// PENDING_APPROVAL is the only non-terminal state.
type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "PENDING_APPROVAL"
	AdjustmentApproved AdjustmentStatus = "APPROVED"
	AdjustmentRejected AdjustmentStatus = "REJECTED"
)

// AdjustmentEntry is a proposed correcting entry against a Reconciliation.
// It is created by a maker and decided exactly once by a checker.
type AdjustmentEntry struct {
	// ID is the unique identifier (UUID format).
	ID string `json:"id"`

	// ReconciliationID references the owning record.
	ReconciliationID string `json:"reconciliationId"`

	// EntityID and PeriodID echo the owning record unless supplied by the maker.
	EntityID string `json:"entityId"`
	PeriodID string `json:"periodId"`

	DebitAccount  string `json:"debitAccount"`
	CreditAccount string `json:"creditAccount"`

	// Amount is strictly positive.
	Amount decimal.Decimal `json:"amount"`

	// ImpactOnPrepaid is +Amount when the prepaid account is debited,
	// -Amount when it is credited and zero when neither side touches it.
	ImpactOnPrepaid decimal.Decimal `json:"impactOnPrepaid"`

	Explanation string `json:"explanation"`

	Status AdjustmentStatus `json:"status"`

	MakerID      string `json:"makerId"`
	MakerComment string `json:"makerComment"`

	// Checker fields stay nil until the entry is approved or rejected.
	CheckerID      *string    `json:"checkerId"`
	CheckerComment *string    `json:"checkerComment"`
	DecidedAt      *time.Time `json:"decidedAt"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// IsDeleted reports whether the entry has been soft-deleted.
func (a *AdjustmentEntry) IsDeleted() bool {
	return a.DeletedAt != nil
}

// Clone returns a copy safe to mutate.
func (a *AdjustmentEntry) Clone() *AdjustmentEntry {
	if a == nil {
		return nil
	}
	c := *a
	if a.CheckerID != nil {
		v := *a.CheckerID
		c.CheckerID = &v
	}
	if a.CheckerComment != nil {
		v := *a.CheckerComment
		c.CheckerComment = &v
	}
	if a.DecidedAt != nil {
		v := *a.DecidedAt
		c.DecidedAt = &v
	}
	if a.DeletedAt != nil {
		v := *a.DeletedAt
		c.DeletedAt = &v
	}
	return &c
}

// ApprovalAction is the kind of an ApprovalEvent.
type ApprovalAction string

const (
	ActionProposed ApprovalAction = "PROPOSED"
	ActionApproved ApprovalAction = "APPROVED"
	ActionRejected ApprovalAction = "REJECTED"
)

// ApprovalEvent is one immutable entry in an adjustment's approval history.
type ApprovalEvent struct {
	ID           string         `json:"id"`
	AdjustmentID string         `json:"adjustmentId"`
	Action       ApprovalAction `json:"action"`
	UserID       string         `json:"userId"`
	Comment      string         `json:"comment"`
	Timestamp    time.Time      `json:"timestamp"`
}
