package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/lock"
	"github.com/mmynk/prepaidrecon/internal/metrics"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Proposal is a maker's request to add an adjustment entry.
type Proposal struct {
	ReconciliationID string `validate:"required"`
	MakerID          string `validate:"required"`

	// EntityID and PeriodID are optional echoes of the reconciliation's.
	// A value that names another entity or period is rejected.
	EntityID string
	PeriodID string

	DebitAccount  string `validate:"max=64"`
	CreditAccount string `validate:"max=64"`

	// Amount is taken from the first valid of Amount, DebitAmount and
	// CreditAmount. It must be strictly positive.
	Amount       decimal.NullDecimal
	DebitAmount  decimal.NullDecimal
	CreditAmount decimal.NullDecimal

	Explanation string `validate:"required,max=2000"`
}

// amount resolves the Amount alias chain.
func (p Proposal) amount() (decimal.Decimal, bool) {
	for _, v := range []decimal.NullDecimal{p.Amount, p.DebitAmount, p.CreditAmount} {
		if v.Valid {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}

// Decision is the result of an approve or reject call.
type Decision struct {
	Adjustment *models.AdjustmentEntry

	// Reconciliation is the owning record after the decision. It is nil when
	// the record has been deleted in the meantime.
	Reconciliation *models.Reconciliation
}

// Workflow implements the maker/checker state machine over adjustment entries.
// Lock order is adjustment first, then record.
type Workflow struct {
	engine   *Engine
	validate *validator.Validate
}

// NewWorkflow creates a Workflow that recomputes records through engine.
func NewWorkflow(engine *Engine) *Workflow {
	return &Workflow{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ImpactOnPrepaid is +amount when debitAccount is the prepaid account,
// -amount when creditAccount is, and zero when neither or both are.
func ImpactOnPrepaid(debitAccount, creditAccount, prepaidAccount string, amount decimal.Decimal) decimal.Decimal {
	prepaid := strings.TrimSpace(prepaidAccount)
	impact := decimal.Zero
	if strings.TrimSpace(debitAccount) == prepaid {
		impact = impact.Add(amount)
	}
	if strings.TrimSpace(creditAccount) == prepaid {
		impact = impact.Sub(amount)
	}
	return impact
}

// Propose records a new pending adjustment against an open reconciliation
// and moves the reconciliation to PENDING_CHECKER.
func (w *Workflow) Propose(ctx context.Context, p Proposal) (*models.AdjustmentEntry, error) {
	p.ReconciliationID = strings.TrimSpace(p.ReconciliationID)
	p.MakerID = strings.TrimSpace(p.MakerID)
	p.DebitAccount = strings.TrimSpace(p.DebitAccount)
	p.CreditAccount = strings.TrimSpace(p.CreditAccount)
	p.Explanation = strings.TrimSpace(p.Explanation)

	if err := w.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	amount, ok := p.amount()
	if !ok || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	e := w.engine
	rec, err := e.liveRecord(ctx, p.ReconciliationID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, lock.RecordKey(rec.EntityID, rec.PeriodID, rec.PrepaidAccount))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; the status may have changed.
	if rec, err = e.liveRecord(ctx, p.ReconciliationID); err != nil {
		return nil, err
	}
	if rec.Status == models.StatusClosed {
		return nil, fmt.Errorf("%w: reconciliation is closed and locked; no new adjustments", ErrConflict)
	}
	if err := echoes(p, rec); err != nil {
		return nil, err
	}

	now := e.now()
	adj := &models.AdjustmentEntry{
		ID:               uuid.New().String(),
		ReconciliationID: rec.ID,
		EntityID:         rec.EntityID,
		PeriodID:         rec.PeriodID,
		DebitAccount:     p.DebitAccount,
		CreditAccount:    p.CreditAccount,
		Amount:           amount,
		ImpactOnPrepaid:  ImpactOnPrepaid(p.DebitAccount, p.CreditAccount, rec.PrepaidAccount, amount),
		Explanation:      p.Explanation,
		Status:           models.AdjustmentPending,
		MakerID:          p.MakerID,
		MakerComment:     p.Explanation,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.InsertAdjustment(ctx, adj); err != nil {
		return nil, fmt.Errorf("failed to insert adjustment: %w", err)
	}

	if _, err := w.setStatusLocked(ctx, rec.ID, models.StatusPendingChecker); err != nil {
		return nil, err
	}

	if err := w.appendEvent(ctx, adj.ID, models.ActionProposed, p.MakerID, p.Explanation); err != nil {
		return nil, err
	}

	metrics.AdjustmentTransitions.WithLabelValues(string(models.ActionProposed)).Inc()
	slog.Info("Adjustment proposed", "id", adj.ID, "reconciliation_id", rec.ID, "impact", adj.ImpactOnPrepaid.String())
	return adj, nil
}

// Approve marks a pending entry APPROVED and recomputes its reconciliation
// so the entry's impact is folded into reconEntries. When the recompute
// fails the entry stays APPROVED with its event recorded; the next run over
// the record folds it in.
func (w *Workflow) Approve(ctx context.Context, adjustmentID, checkerID, comment string) (*Decision, error) {
	adj, err := w.decide(ctx, adjustmentID, checkerID, comment, models.AdjustmentApproved)
	if err != nil {
		return nil, err
	}

	rec, err := w.engine.Recompute(ctx, adj.ReconciliationID)
	if err != nil {
		slog.Error("Approved adjustment not yet folded into reconciliation", "id", adj.ID, "reconciliation_id", adj.ReconciliationID, "error", err)
		return nil, fmt.Errorf("failed to recompute reconciliation: %w", err)
	}

	metrics.AdjustmentTransitions.WithLabelValues(string(models.ActionApproved)).Inc()
	slog.Info("Adjustment approved", "id", adj.ID, "reconciliation_id", adj.ReconciliationID)
	return &Decision{Adjustment: adj, Reconciliation: rec}, nil
}

// Reject marks a pending entry REJECTED and reopens its reconciliation
// without touching any figure. A comment is mandatory.
func (w *Workflow) Reject(ctx context.Context, adjustmentID, checkerID, comment string) (*Decision, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: rejection reason is mandatory", ErrValidation)
	}

	adj, err := w.decide(ctx, adjustmentID, checkerID, comment, models.AdjustmentRejected)
	if err != nil {
		return nil, err
	}

	rec, err := w.engine.update(ctx, adj.ReconciliationID, func(r *models.Reconciliation) error {
		r.Status = models.StatusReopened
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.AdjustmentTransitions.WithLabelValues(string(models.ActionRejected)).Inc()
	slog.Info("Adjustment rejected", "id", adj.ID, "reconciliation_id", adj.ReconciliationID)
	return &Decision{Adjustment: adj, Reconciliation: rec}, nil
}

// decide performs the checked PENDING_APPROVAL -> to transition and appends
// the matching approval event while still holding the entry lock.
func (w *Workflow) decide(ctx context.Context, adjustmentID, checkerID, comment string, to models.AdjustmentStatus) (*models.AdjustmentEntry, error) {
	e := w.engine
	adjustmentID = strings.TrimSpace(adjustmentID)
	checkerID = strings.TrimSpace(checkerID)
	if checkerID == "" {
		return nil, fmt.Errorf("%w: checker is required", ErrValidation)
	}

	unlock, err := e.locker.Lock(ctx, lock.AdjustmentKey(adjustmentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	adj, err := e.store.GetAdjustment(ctx, adjustmentID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && adj.IsDeleted()) {
		return nil, fmt.Errorf("%w: adjustment %s", ErrNotFound, adjustmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	if adj.MakerID == checkerID {
		return nil, fmt.Errorf("%w: a maker cannot approve or reject their own adjustment", ErrPermission)
	}
	if adj.Status != models.AdjustmentPending {
		return nil, fmt.Errorf("%w: adjustment is %s, not pending approval", ErrConflict, adj.Status)
	}

	now := e.now()
	comment = strings.TrimSpace(comment)
	adj.Status = to
	adj.CheckerID = &checkerID
	adj.CheckerComment = &comment
	adj.DecidedAt = &now
	adj.UpdatedAt = now

	err = e.store.ReplaceAdjustment(ctx, adj, models.AdjustmentPending)
	if errors.Is(err, storage.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: adjustment is no longer pending approval", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update adjustment: %w", err)
	}

	action := models.ActionApproved
	if to == models.AdjustmentRejected {
		action = models.ActionRejected
	}
	if err := w.appendEvent(ctx, adj.ID, action, checkerID, comment); err != nil {
		return nil, err
	}
	return adj, nil
}

// echoes rejects a proposal whose entity or period names another record's.
func echoes(p Proposal, rec *models.Reconciliation) error {
	if v := strings.TrimSpace(p.EntityID); v != "" && v != rec.EntityID {
		return fmt.Errorf("%w: entity %s does not match reconciliation entity %s", ErrValidation, v, rec.EntityID)
	}
	if v := strings.TrimSpace(p.PeriodID); v != "" && v != rec.PeriodID {
		return fmt.Errorf("%w: period %s does not match reconciliation period %s", ErrValidation, v, rec.PeriodID)
	}
	return nil
}

// setStatusLocked writes a status change; the caller holds the record lock.
func (w *Workflow) setStatusLocked(ctx context.Context, id string, status models.ReconciliationStatus) (*models.Reconciliation, error) {
	e := w.engine
	for attempt := 1; ; attempt++ {
		rec, err := e.liveRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := rec.Version
		rec.Status = status
		rec.Version = expected + 1
		rec.UpdatedAt = e.now()

		err = e.store.ReplaceReconciliation(ctx, rec, expected)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < e.maxAttempts {
			metrics.VersionConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update reconciliation status: %w", err)
		}
		return rec, nil
	}
}

func (w *Workflow) appendEvent(ctx context.Context, adjustmentID string, action models.ApprovalAction, userID, comment string) error {
	ev := &models.ApprovalEvent{
		ID:           uuid.New().String(),
		AdjustmentID: adjustmentID,
		Action:       action,
		UserID:       userID,
		Comment:      comment,
		Timestamp:    w.engine.now(),
	}
	if err := w.engine.store.AppendApproval(ctx, ev); err != nil {
		return fmt.Errorf("failed to append approval event: %w", err)
	}
	return nil
}

// describe flattens validator errors into "Field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
