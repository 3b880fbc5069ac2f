package recon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
	"github.com/mmynk/prepaidrecon/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// newTestEngine returns an engine over a memory store seeded with the
// 2024_12 example: account 1400 has opening 1000, additions 500,
// amortization 300, a subsystem total of 1200 and a TB balance of 1150.
// Account 1500 only has schedule lines and account 1600 only a TB line.
func newTestEngine(t *testing.T) (*memory.Store, *Engine) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	err := store.AddWorkingLines(ctx, []models.WorkingLine{
		{ID: "w0", EntityID: "E1", FiscalYear: "2023", FiscalPeriod: "2023_12", PrepaidAccount: "1400", Additions: dec("1000")},
		{
			ID: "w1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", PrepaidAccount: "1400",
			OpeningBalance: dec("1000"), Additions: dec("500"), Amortization: decimal.NewNullDecimal(dec("300")),
		},
		{ID: "w9", EntityID: "E2", FiscalYear: "2024", FiscalPeriod: "2024_12", PrepaidAccount: "1900", Additions: dec("1")},
	})
	if err != nil {
		t.Fatalf("AddWorkingLines failed: %v", err)
	}

	err = store.AddScheduleLines(ctx, []models.ScheduleLine{
		{ID: "s1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_06", Account: "1400", ApplyDate: "2024-06-30", CreditAmount: dec("300"), PrepaidStartYear: "2023"},
		{ID: "s2", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1500", ApplyDate: "2024-12-15", CreditAmount: dec("25")},
	})
	if err != nil {
		t.Fatalf("AddScheduleLines failed: %v", err)
	}

	err = store.AddTrialBalanceLines(ctx, []models.TrialBalanceLine{
		{ID: "t1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1400", ClosingBalance: dec("1150")},
		{ID: "t2", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1600", ClosingBalance: dec("0")},
	})
	if err != nil {
		t.Fatalf("AddTrialBalanceLines failed: %v", err)
	}

	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return store, NewEngine(store, WithClock(clock.Now))
}

func exampleKey(account string) models.LineKey {
	return models.LineKey{EntityID: "E1", PeriodID: "2024_12", FiscalYear: "2024", Account: account}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestComputeOne_WorkedExample(t *testing.T) {
	_, engine := newTestEngine(t)

	rec, err := engine.ComputeOne(context.Background(), exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}

	if rec.ID == "" || rec.Version != 1 {
		t.Errorf("new record id=%q version=%d", rec.ID, rec.Version)
	}
	assertDecimal(t, "ExpectedClosing", rec.ExpectedClosing, "1200")
	assertDecimal(t, "TotalSubsystem", rec.TotalSubsystem, "1200")
	assertDecimal(t, "Difference", rec.Difference.Decimal, "50")
	assertDecimal(t, "ReconEntries", rec.ReconEntries, "0")
	assertDecimal(t, "FinalDifference", rec.FinalDifference.Decimal, "50")
	if rec.Status != models.StatusOpen {
		t.Errorf("Status = %s, want OPEN", rec.Status)
	}
	// 2024-12 resolves to a 2024-12-31 report date so the 2024-06-30 line counts.
	assertDecimal(t, "BeginInYear[2023]", rec.BeginInYear["2023"], "700")
}

func TestComputeOne_RequiresTriple(t *testing.T) {
	_, engine := newTestEngine(t)
	_, err := engine.ComputeOne(context.Background(), models.LineKey{EntityID: "E1", PeriodID: "2024_12"})
	if !isKind(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestComputeOne_UsesTolerance(t *testing.T) {
	store, engine := newTestEngine(t)
	ctx := context.Background()
	if err := store.PutToleranceRule(ctx, models.ToleranceRule{ID: "r1", EntityID: "E1", Amount: dec("50")}); err != nil {
		t.Fatalf("PutToleranceRule failed: %v", err)
	}

	rec, err := engine.ComputeOne(ctx, exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}
	assertDecimal(t, "ToleranceUsed", rec.ToleranceUsed, "50")
	if rec.Status != models.StatusClosed {
		t.Errorf("Status = %s, want CLOSED within tolerance", rec.Status)
	}
}

func TestComputeOne_PeriodEndDateLimitsAmortization(t *testing.T) {
	store, engine := newTestEngine(t)
	ctx := context.Background()
	if err := store.PutPeriod(ctx, models.FiscalPeriod{ID: "2024_12", EndDate: "2024-05-31"}); err != nil {
		t.Fatalf("PutPeriod failed: %v", err)
	}

	rec, err := engine.ComputeOne(ctx, exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}
	assertDecimal(t, "BeginInYear[2023]", rec.BeginInYear["2023"], "1000")
	assertDecimal(t, "TotalSubsystem", rec.TotalSubsystem, "1500")
	assertDecimal(t, "SubsystemDivergence", rec.SubsystemDivergence, "-300")
}

func TestComputeAll_DiscoversAccounts(t *testing.T) {
	_, engine := newTestEngine(t)
	ctx := context.Background()

	recs, err := engine.ComputeAll(ctx, "E1", "2024", "2024_12")
	if err != nil {
		t.Fatalf("ComputeAll failed: %v", err)
	}

	byAccount := map[string]*models.Reconciliation{}
	for _, r := range recs {
		byAccount[r.PrepaidAccount] = r
	}
	if len(byAccount) != 3 {
		t.Fatalf("got accounts %v, want 1400, 1500 and 1600", keys(byAccount))
	}

	scheduleOnly := byAccount["1500"]
	assertDecimal(t, "1500 Opening", scheduleOnly.OpeningBalance, "0")
	assertDecimal(t, "1500 Amortization", scheduleOnly.Amortization, "25")
	if scheduleOnly.GLBalance.Valid || scheduleOnly.Difference.Valid || scheduleOnly.Status != models.StatusOpen {
		t.Errorf("1500 without TB row should be OPEN with null GL figures: %+v", scheduleOnly)
	}

	tbOnly := byAccount["1600"]
	assertDecimal(t, "1600 GLBalance", tbOnly.GLBalance.Decimal, "0")
	if tbOnly.Status != models.StatusClosed {
		t.Errorf("1600 Status = %s, want CLOSED (0 - 0 within 0 tolerance)", tbOnly.Status)
	}

	// A second run reuses the same records.
	again, err := engine.ComputeAll(ctx, "E1", "2024", "2024_12")
	if err != nil {
		t.Fatalf("second ComputeAll failed: %v", err)
	}
	for _, r := range again {
		first := byAccount[r.PrepaidAccount]
		if r.ID != first.ID || r.Version != 2 || !r.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("account %s: id %s->%s version %d", r.PrepaidAccount, first.ID, r.ID, r.Version)
		}
	}
}

func TestComputeAll_RequiresEntityAndPeriod(t *testing.T) {
	_, engine := newTestEngine(t)
	if _, err := engine.ComputeAll(context.Background(), "", "2024", "2024_12"); !isKind(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRecompute_IsIdempotent(t *testing.T) {
	_, engine := newTestEngine(t)
	ctx := context.Background()

	rec, err := engine.ComputeOne(ctx, exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}
	first, err := engine.Recompute(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	second, err := engine.Recompute(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	if second.Version != first.Version+1 {
		t.Errorf("version %d -> %d, want +1", first.Version, second.Version)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("UpdatedAt should advance")
	}
	if !sameFigures(first, second) {
		t.Errorf("figures changed between recomputes:\n%+v\n%+v", first, second)
	}
}

func TestRecompute_MissingOrDeleted(t *testing.T) {
	_, engine := newTestEngine(t)
	ctx := context.Background()

	if rec, err := engine.Recompute(ctx, "nope"); rec != nil || err != nil {
		t.Errorf("Recompute(unknown) = %v, %v; want nil, nil", rec, err)
	}

	rec, err := engine.ComputeOne(ctx, exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}
	deleted, err := engine.Delete(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted.DeletedAt == nil || deleted.Version != 2 {
		t.Errorf("deleted record = %+v", deleted)
	}
	if got, err := engine.Recompute(ctx, rec.ID); got != nil || err != nil {
		t.Errorf("Recompute(deleted) = %v, %v; want nil, nil", got, err)
	}
	if _, err := engine.Delete(ctx, rec.ID); !isKind(err, ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}

	// The triple is free again, so the next run creates a new record.
	fresh, err := engine.ComputeOne(ctx, exampleKey("1400"))
	if err != nil {
		t.Fatalf("ComputeOne after delete failed: %v", err)
	}
	if fresh.ID == rec.ID || fresh.Version != 1 {
		t.Errorf("expected a fresh record, got id=%s version=%d", fresh.ID, fresh.Version)
	}
}

func TestComputeOne_ConcurrentCallsSerialize(t *testing.T) {
	store, engine := newTestEngine(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ComputeOne(ctx, exampleKey("1400")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ComputeOne failed: %v", err)
	}

	recs, err := store.ListReconciliations(ctx, storage.ReconciliationFilter{EntityID: "E1"})
	if err != nil {
		t.Fatalf("ListReconciliations failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(recs))
	}
	if recs[0].Version != n {
		t.Errorf("Version = %d, want %d", recs[0].Version, n)
	}
}

func sameFigures(a, b *models.Reconciliation) bool {
	if a.Status != b.Status || len(a.BeginInYear) != len(b.BeginInYear) {
		return false
	}
	for y, v := range a.BeginInYear {
		if !v.Equal(b.BeginInYear[y]) {
			return false
		}
	}
	eqNull := func(x, y decimal.NullDecimal) bool {
		return x.Valid == y.Valid && (!x.Valid || x.Decimal.Equal(y.Decimal))
	}
	return a.OpeningBalance.Equal(b.OpeningBalance) &&
		a.Additions.Equal(b.Additions) &&
		a.Amortization.Equal(b.Amortization) &&
		a.ExpectedClosing.Equal(b.ExpectedClosing) &&
		a.TotalSubsystem.Equal(b.TotalSubsystem) &&
		a.ReconEntries.Equal(b.ReconEntries) &&
		a.ToleranceUsed.Equal(b.ToleranceUsed) &&
		eqNull(a.GLBalance, b.GLBalance) &&
		eqNull(a.Difference, b.Difference) &&
		eqNull(a.FinalDifference, b.FinalDifference) &&
		eqNull(a.Variance, b.Variance)
}

func keys(m map[string]*models.Reconciliation) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
