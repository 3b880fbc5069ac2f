// Package recon runs reconciliations and the maker/checker adjustment
// workflow on top of the storage repositories.
//
// Every write to a reconciliation record happens under a per-triple lock
// and is committed with a compare-and-swap on the record version, so
// concurrent recomputes never lose an update.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/calculator"
	"github.com/mmynk/prepaidrecon/internal/lock"
	"github.com/mmynk/prepaidrecon/internal/matcher"
	"github.com/mmynk/prepaidrecon/internal/metrics"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Store is the subset of storage.Store the engine depends on.
type Store interface {
	storage.LineStore
	storage.ReconciliationStore
	storage.AdjustmentStore
	storage.SettingsStore
}

const defaultMaxAttempts = 3

// Engine computes and persists reconciliation records.
type Engine struct {
	store       Store
	locker      lock.Locker
	now         func() time.Time
	maxAttempts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the default in-process KeyedMutex.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxAttempts bounds how often a write is retried after a version conflict.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		locker:      lock.NewKeyedMutex(),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeOne computes the record for one (entity, period, account) triple,
// reusing the live record for that triple when there is one.
// key.FiscalYear is optional and narrows the lines considered.
func (e *Engine) ComputeOne(ctx context.Context, key models.LineKey) (*models.Reconciliation, error) {
	key = key.Normalize()
	if key.EntityID == "" || key.PeriodID == "" || key.Account == "" {
		return nil, fmt.Errorf("%w: entity, period and account are required", ErrValidation)
	}

	unlock, err := e.locker.Lock(ctx, lock.RecordKey(key.EntityID, key.PeriodID, key.Account))
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		existing, err := e.store.FindReconciliation(ctx, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to find reconciliation: %w", err)
		}

		k := key
		if k.FiscalYear == "" && existing != nil {
			k.FiscalYear = existing.FiscalYear
		}

		rec, err := e.computeAndWrite(ctx, k, existing)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < e.maxAttempts {
			metrics.VersionConflicts.Inc()
			slog.Warn("Reconciliation write conflict, retrying", "entity", key.EntityID, "period", key.PeriodID, "account", key.Account, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// ComputeAll discovers every prepaid account touched by working, schedule or
// trial balance lines for (entity, period, fiscal year) and computes each.
// A failure on one account does not stop the others; successfully written
// records are returned together with the joined errors.
func (e *Engine) ComputeAll(ctx context.Context, entityID, fiscalYear, periodID string) ([]*models.Reconciliation, error) {
	filter := models.LineKey{EntityID: entityID, PeriodID: periodID, FiscalYear: fiscalYear}.Normalize()
	if filter.EntityID == "" || filter.PeriodID == "" {
		return nil, fmt.Errorf("%w: entity and period are required", ErrValidation)
	}

	accounts, err := e.discoverAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}

	slog.Info("Running reconciliations", "entity", filter.EntityID, "period", filter.PeriodID, "fiscal_year", filter.FiscalYear, "accounts", len(accounts))

	var (
		results []*models.Reconciliation
		errs    []error
	)
	for _, account := range accounts {
		key := filter
		key.Account = account
		rec, err := e.ComputeOne(ctx, key)
		if err != nil {
			slog.Error("Reconciliation failed", "entity", key.EntityID, "period", key.PeriodID, "account", account, "error", err)
			errs = append(errs, fmt.Errorf("account %s: %w", account, err))
			continue
		}
		results = append(results, rec)
	}
	return results, errors.Join(errs...)
}

// Recompute re-runs the computation of an existing record against current
// lines, tolerances and approved adjustments. Returns nil, nil when the
// record does not exist or is soft-deleted.
func (e *Engine) Recompute(ctx context.Context, id string) (*models.Reconciliation, error) {
	rec, err := e.store.GetReconciliation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	if rec.IsDeleted() {
		return nil, nil
	}

	unlock, err := e.locker.Lock(ctx, lock.RecordKey(rec.EntityID, rec.PeriodID, rec.PrepaidAccount))
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		cur, err := e.store.GetReconciliation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get reconciliation: %w", err)
		}
		if cur.IsDeleted() {
			return nil, nil
		}

		key := models.LineKey{EntityID: cur.EntityID, PeriodID: cur.PeriodID, FiscalYear: cur.FiscalYear, Account: cur.PrepaidAccount}
		updated, err := e.computeAndWrite(ctx, key, cur)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < e.maxAttempts {
			metrics.VersionConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// Delete soft-deletes a record. The triple becomes free for a new record.
func (e *Engine) Delete(ctx context.Context, id string) (*models.Reconciliation, error) {
	return e.update(ctx, id, func(rec *models.Reconciliation) error {
		now := e.now()
		rec.DeletedAt = &now
		return nil
	})
}

// update applies mutate to the live record with id under the record lock,
// bumps its version and commits with compare-and-swap.
func (e *Engine) update(ctx context.Context, id string, mutate func(rec *models.Reconciliation) error) (*models.Reconciliation, error) {
	rec, err := e.liveRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, lock.RecordKey(rec.EntityID, rec.PeriodID, rec.PrepaidAccount))
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		cur, err := e.liveRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := cur.Version
		if err := mutate(cur); err != nil {
			return nil, err
		}
		cur.Version = expected + 1
		cur.UpdatedAt = e.now()

		err = e.store.ReplaceReconciliation(ctx, cur, expected)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < e.maxAttempts {
			metrics.VersionConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update reconciliation: %w", err)
		}
		return cur, nil
	}
}

func (e *Engine) liveRecord(ctx context.Context, id string) (*models.Reconciliation, error) {
	rec, err := e.store.GetReconciliation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: reconciliation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	if rec.IsDeleted() {
		return nil, fmt.Errorf("%w: reconciliation %s", ErrNotFound, id)
	}
	return rec, nil
}

// computeAndWrite must be called with the record lock held.
func (e *Engine) computeAndWrite(ctx context.Context, key models.LineKey, existing *models.Reconciliation) (*models.Reconciliation, error) {
	start := time.Now()

	id := uuid.New().String()
	reconEntries := decimal.Zero
	pending := false
	if existing != nil {
		id = existing.ID
		var err error
		reconEntries, pending, err = e.adjustmentTotals(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	in, err := e.loadInputs(ctx, key)
	if err != nil {
		return nil, err
	}
	in.ReconEntries = reconEntries

	res := calculator.Compute(in)
	rec := calculator.Apply(existing, id, key, res, e.now())
	if pending {
		rec.Status = models.StatusPendingChecker
	}

	if !res.Divergence.IsZero() {
		slog.Warn("Subsystem total diverges from expected closing",
			"entity", key.EntityID, "period", key.PeriodID, "account", key.Account,
			"expected_closing", res.ExpectedClosing.String(),
			"total_subsystem", res.TotalSubsystem.String(),
		)
	}

	if existing == nil {
		err = e.store.InsertReconciliation(ctx, rec)
	} else {
		err = e.store.ReplaceReconciliation(ctx, rec, existing.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save reconciliation: %w", err)
	}

	metrics.Computations.WithLabelValues(string(rec.Status)).Inc()
	metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	slog.Debug("Reconciliation computed",
		"id", rec.ID, "entity", rec.EntityID, "period", rec.PeriodID, "account", rec.PrepaidAccount,
		"status", rec.Status, "version", rec.Version,
	)
	return rec, nil
}

// loadInputs gathers the lines, report date and tolerance for key.
func (e *Engine) loadInputs(ctx context.Context, key models.LineKey) (calculator.Inputs, error) {
	in := calculator.Inputs{Key: key}
	byAccount := models.LineKey{EntityID: key.EntityID, Account: key.Account}

	var err error
	if in.WorkingLines, err = e.store.WorkingLines(ctx, byAccount); err != nil {
		return in, fmt.Errorf("failed to load working lines: %w", err)
	}
	if in.ScheduleLines, err = e.store.ScheduleLines(ctx, byAccount); err != nil {
		return in, fmt.Errorf("failed to load schedule lines: %w", err)
	}
	if in.TrialBalanceLines, err = e.store.TrialBalanceLines(ctx, key); err != nil {
		return in, fmt.Errorf("failed to load trial balance lines: %w", err)
	}

	if in.ReportDate, err = e.reportDate(ctx, key.PeriodID, key.FiscalYear); err != nil {
		return in, err
	}
	if in.Tolerance, err = e.tolerance(ctx, key.EntityID, key.PeriodID); err != nil {
		return in, err
	}
	return in, nil
}

func (e *Engine) reportDate(ctx context.Context, periodID, fiscalYear string) (string, error) {
	period, err := e.store.GetPeriod(ctx, periodID)
	if errors.Is(err, storage.ErrNotFound) {
		period = nil
	} else if err != nil {
		return "", fmt.Errorf("failed to get period: %w", err)
	}
	return calculator.ReportDate(period, periodID, fiscalYear), nil
}

func (e *Engine) tolerance(ctx context.Context, entityID, periodID string) (decimal.Decimal, error) {
	rules, err := e.store.ListToleranceRules(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list tolerance rules: %w", err)
	}
	return calculator.ResolveTolerance(rules, entityID, periodID), nil
}

// adjustmentTotals sums the impact of approved entries against the record
// and reports whether any entry is still pending approval.
func (e *Engine) adjustmentTotals(ctx context.Context, reconciliationID string) (decimal.Decimal, bool, error) {
	entries, err := e.store.ListAdjustments(ctx, storage.AdjustmentFilter{ReconciliationID: reconciliationID})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to list adjustments: %w", err)
	}
	total := decimal.Zero
	pending := false
	for _, a := range entries {
		switch a.Status {
		case models.AdjustmentApproved:
			total = total.Add(a.ImpactOnPrepaid)
		case models.AdjustmentPending:
			pending = true
		}
	}
	return total, pending, nil
}

func (e *Engine) discoverAccounts(ctx context.Context, filter models.LineKey) ([]string, error) {
	working, err := e.store.WorkingLines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load working lines: %w", err)
	}
	schedule, err := e.store.ScheduleLines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule lines: %w", err)
	}
	tb, err := e.store.TrialBalanceLines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load trial balance lines: %w", err)
	}
	return matcher.Union(
		matcher.Accounts(working, filter),
		matcher.Accounts(schedule, filter),
		matcher.Accounts(tb, filter),
	), nil
}
