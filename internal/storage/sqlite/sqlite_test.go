package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "prepaidrecon-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedRecord(t *testing.T, store *SQLiteStore, id string) *models.Reconciliation {
	t.Helper()
	created := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	rec := &models.Reconciliation{
		ID:                      id,
		EntityID:                "E1",
		FiscalYear:              "2024",
		PeriodID:                "2024_12",
		PrepaidAccount:          "1400",
		OpeningBalance:          dec("1000"),
		Additions:               dec("500"),
		Amortization:            dec("300"),
		ExpectedClosing:         dec("1200"),
		BeginInYear:             map[string]decimal.Decimal{"2023": dec("700"), "2024": dec("500")},
		TotalSubsystem:          dec("1200"),
		GLBalance:               decimal.NewNullDecimal(dec("1150.25")),
		Difference:              decimal.NewNullDecimal(dec("49.75")),
		FinalDifference:         decimal.NewNullDecimal(dec("49.75")),
		ExpectedClosingAdjusted: dec("1200"),
		Variance:                decimal.NewNullDecimal(dec("-49.75")),
		Status:                  models.StatusOpen,
		Version:                 1,
		CreatedAt:               created,
		UpdatedAt:               created,
	}
	if err := store.InsertReconciliation(context.Background(), rec); err != nil {
		t.Fatalf("InsertReconciliation failed: %v", err)
	}
	return rec
}

func TestSQLiteStore_Lines(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("AddTrialBalanceLines trims keys and generates IDs", func(t *testing.T) {
		err := store.AddTrialBalanceLines(ctx, []models.TrialBalanceLine{
			{ID: "a", EntityID: " E1 ", FiscalYear: "2024", FiscalPeriod: "P1", Account: "1400 ", ClosingBalance: dec("-12.50")},
			{EntityID: "E1", FiscalPeriod: "P1", Account: "1400", ClosingBalance: dec("3")},
			{ID: "c", EntityID: "E1", FiscalYear: "2023", FiscalPeriod: "P1", Account: "1400", ClosingBalance: dec("9")},
			{ID: "d", EntityID: "E2", FiscalYear: "2024", FiscalPeriod: "P1", Account: "1400", ClosingBalance: dec("1")},
		})
		if err != nil {
			t.Fatalf("AddTrialBalanceLines failed: %v", err)
		}

		got, err := store.TrialBalanceLines(ctx, models.LineKey{EntityID: "E1", PeriodID: "P1", FiscalYear: "2024", Account: "1400"})
		if err != nil {
			t.Fatalf("TrialBalanceLines failed: %v", err)
		}
		// The 2023 line is excluded; the line without a fiscal year is kept.
		if len(got) != 2 {
			t.Fatalf("got %d lines, want 2: %+v", len(got), got)
		}
		if got[0].ID != "a" || got[0].EntityID != "E1" || got[0].Account != "1400" {
			t.Errorf("first line = %+v", got[0])
		}
		if !got[0].ClosingBalance.Equal(dec("-12.5")) {
			t.Errorf("ClosingBalance = %s, want -12.5", got[0].ClosingBalance)
		}
		if got[1].ID == "" {
			t.Error("Expected line ID to be generated")
		}
	})

	t.Run("WorkingLines keeps null amortization", func(t *testing.T) {
		err := store.AddWorkingLines(ctx, []models.WorkingLine{
			{ID: "w1", EntityID: "E1", FiscalPeriod: "P1", PrepaidAccount: "1400", Additions: dec("10")},
			{ID: "w2", EntityID: "E1", FiscalPeriod: "P2", PrepaidAccount: "1400", Amortization: decimal.NewNullDecimal(dec("0"))},
		})
		if err != nil {
			t.Fatalf("AddWorkingLines failed: %v", err)
		}

		got, err := store.WorkingLines(ctx, models.LineKey{EntityID: "E1", Account: "1400"})
		if err != nil {
			t.Fatalf("WorkingLines failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d lines, want 2", len(got))
		}
		if got[0].Amortization.Valid {
			t.Error("w1 amortization should be null")
		}
		if !got[1].Amortization.Valid || !got[1].Amortization.Decimal.IsZero() {
			t.Errorf("w2 amortization = %+v, want explicit zero", got[1].Amortization)
		}
	})

	t.Run("ScheduleLines keeps duplicates in ingestion order", func(t *testing.T) {
		line := models.ScheduleLine{ID: "s1", EntityID: "E1", FiscalPeriod: "P1", Account: "1400", ApplyDate: "2024-06-30", CreditAmount: dec("300"), PrepaidStartYear: "2023"}
		other := models.ScheduleLine{ID: "s2", EntityID: "E1", FiscalPeriod: "P1", Account: "1500", DebitAmount: dec("4")}
		if err := store.AddScheduleLines(ctx, []models.ScheduleLine{line, other, line}); err != nil {
			t.Fatalf("AddScheduleLines failed: %v", err)
		}

		got, err := store.ScheduleLines(ctx, models.LineKey{EntityID: "E1", Account: "1400"})
		if err != nil {
			t.Fatalf("ScheduleLines failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s1" {
			t.Fatalf("got %+v, want s1 twice", got)
		}
		if got[0].StartYear() != "2023" || !got[0].CreditAmount.Equal(dec("300")) {
			t.Errorf("line = %+v", got[0])
		}

		all, err := store.ScheduleLines(ctx, models.LineKey{})
		if err != nil {
			t.Fatalf("ScheduleLines failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("unfiltered query returned %d lines, want 3", len(all))
		}
	})
}

func TestSQLiteStore_Reconciliations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := seedRecord(t, store, "r1")

	t.Run("GetReconciliation round-trips figures", func(t *testing.T) {
		got, err := store.GetReconciliation(ctx, "r1")
		if err != nil {
			t.Fatalf("GetReconciliation failed: %v", err)
		}
		if !got.GLBalance.Valid || !got.GLBalance.Decimal.Equal(dec("1150.25")) {
			t.Errorf("GLBalance = %+v", got.GLBalance)
		}
		if !got.BeginInYear["2023"].Equal(dec("700")) || len(got.BeginInYear) != 2 {
			t.Errorf("BeginInYear = %v", got.BeginInYear)
		}
		if !got.CreatedAt.Equal(rec.CreatedAt) || got.DeletedAt != nil {
			t.Errorf("timestamps = %v / %v", got.CreatedAt, got.DeletedAt)
		}
		if got.Status != models.StatusOpen || got.Version != 1 {
			t.Errorf("status=%s version=%d", got.Status, got.Version)
		}
	})

	t.Run("GetReconciliation unknown ID", func(t *testing.T) {
		if _, err := store.GetReconciliation(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second live record for the triple conflicts", func(t *testing.T) {
		dup := rec.Clone()
		dup.ID = "r2"
		dup.FiscalYear = "2025"
		if err := store.InsertReconciliation(ctx, dup); !errors.Is(err, storage.ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("ReplaceReconciliation compares versions", func(t *testing.T) {
		next := rec.Clone()
		next.Version = 2
		next.GLBalance = decimal.NullDecimal{}
		next.Difference = decimal.NullDecimal{}
		if err := store.ReplaceReconciliation(ctx, next, 1); err != nil {
			t.Fatalf("ReplaceReconciliation failed: %v", err)
		}
		if err := store.ReplaceReconciliation(ctx, next, 1); !errors.Is(err, storage.ErrVersionConflict) {
			t.Errorf("stale replace: expected ErrVersionConflict, got %v", err)
		}
		ghost := next.Clone()
		ghost.ID = "ghost"
		if err := store.ReplaceReconciliation(ctx, ghost, 1); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("unknown record: expected ErrNotFound, got %v", err)
		}

		got, _ := store.GetReconciliation(ctx, "r1")
		if got.GLBalance.Valid || got.Difference.Valid || got.Version != 2 {
			t.Errorf("after replace: %+v", got)
		}
	})

	t.Run("soft delete frees the triple", func(t *testing.T) {
		cur, _ := store.GetReconciliation(ctx, "r1")
		gone := cur.Clone()
		now := time.Now()
		gone.DeletedAt = &now
		gone.Version = cur.Version + 1
		if err := store.ReplaceReconciliation(ctx, gone, cur.Version); err != nil {
			t.Fatalf("soft delete failed: %v", err)
		}
		if _, err := store.FindReconciliation(ctx, rec.Key()); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("deleted record still found: %v", err)
		}

		fresh := rec.Clone()
		fresh.ID = "r3"
		if err := store.InsertReconciliation(ctx, fresh); err != nil {
			t.Fatalf("insert after soft delete failed: %v", err)
		}
		found, err := store.FindReconciliation(ctx, models.LineKey{EntityID: " E1", PeriodID: "2024_12", Account: "1400"})
		if err != nil || found.ID != "r3" {
			t.Errorf("FindReconciliation = %v, %v", found, err)
		}
	})

	t.Run("ListReconciliations filters", func(t *testing.T) {
		other := rec.Clone()
		other.ID = "r4"
		other.EntityID = "E2"
		other.Status = models.StatusClosed
		if err := store.InsertReconciliation(ctx, other); err != nil {
			t.Fatalf("InsertReconciliation failed: %v", err)
		}

		tests := []struct {
			name   string
			filter storage.ReconciliationFilter
			want   []string
		}{
			{"live only", storage.ReconciliationFilter{}, []string{"r3", "r4"}},
			{"include deleted", storage.ReconciliationFilter{IncludeDeleted: true}, []string{"r1", "r3", "r4"}},
			{"by status", storage.ReconciliationFilter{Status: models.StatusClosed}, []string{"r4"}},
			{"entity scope", storage.ReconciliationFilter{EntityIDs: []string{"E1"}}, []string{"r3"}},
			{"empty scope", storage.ReconciliationFilter{EntityIDs: []string{}}, nil},
			{"by account", storage.ReconciliationFilter{Account: "1500"}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := store.ListReconciliations(ctx, tt.filter)
				if err != nil {
					t.Fatalf("ListReconciliations failed: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("got %d records, want %v", len(got), tt.want)
				}
				for i, r := range got {
					if r.ID != tt.want[i] {
						t.Errorf("record %d = %s, want %s", i, r.ID, tt.want[i])
					}
				}
			})
		}
	})
}

func TestSQLiteStore_Adjustments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRecord(t, store, "r1")

	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	adj := &models.AdjustmentEntry{
		ReconciliationID: "r1",
		EntityID:         "E1",
		PeriodID:         "2024_12",
		DebitAccount:     "1400",
		CreditAccount:    "6100",
		Amount:           dec("50"),
		ImpactOnPrepaid:  dec("50"),
		Explanation:      "accrual missed",
		Status:           models.AdjustmentPending,
		MakerID:          "maker-1",
		MakerComment:     "accrual missed",
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	t.Run("InsertAdjustment generates ID", func(t *testing.T) {
		if err := store.InsertAdjustment(ctx, adj); err != nil {
			t.Fatalf("InsertAdjustment failed: %v", err)
		}
		if adj.ID == "" {
			t.Fatal("Expected adjustment ID to be generated")
		}
		got, err := store.GetAdjustment(ctx, adj.ID)
		if err != nil {
			t.Fatalf("GetAdjustment failed: %v", err)
		}
		if got.CheckerID != nil || got.DecidedAt != nil || !got.Amount.Equal(dec("50")) {
			t.Errorf("pending entry = %+v", got)
		}
	})

	t.Run("adjustment for unknown record is rejected", func(t *testing.T) {
		orphan := adj.Clone()
		orphan.ID = "orphan"
		orphan.ReconciliationID = "missing"
		if err := store.InsertAdjustment(ctx, orphan); err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("ReplaceAdjustment compares status", func(t *testing.T) {
		checker := "checker-1"
		decided := created.Add(time.Hour)
		approved := adj.Clone()
		approved.Status = models.AdjustmentApproved
		approved.CheckerID = &checker
		approved.DecidedAt = &decided
		if err := store.ReplaceAdjustment(ctx, approved, models.AdjustmentPending); err != nil {
			t.Fatalf("ReplaceAdjustment failed: %v", err)
		}

		rejected := adj.Clone()
		rejected.Status = models.AdjustmentRejected
		if err := store.ReplaceAdjustment(ctx, rejected, models.AdjustmentPending); !errors.Is(err, storage.ErrStatusConflict) {
			t.Errorf("expected ErrStatusConflict, got %v", err)
		}

		got, _ := store.GetAdjustment(ctx, adj.ID)
		if got.CheckerID == nil || *got.CheckerID != checker || !got.DecidedAt.Equal(decided) {
			t.Errorf("approved entry = %+v", got)
		}
	})

	t.Run("ListAdjustments filters", func(t *testing.T) {
		list, err := store.ListAdjustments(ctx, storage.AdjustmentFilter{ReconciliationID: "r1", Status: models.AdjustmentApproved})
		if err != nil {
			t.Fatalf("ListAdjustments failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != adj.ID {
			t.Errorf("approved list = %+v", list)
		}
		pending, _ := store.ListAdjustments(ctx, storage.AdjustmentFilter{Status: models.AdjustmentPending})
		if len(pending) != 0 {
			t.Errorf("pending list = %+v", pending)
		}
		scoped, _ := store.ListAdjustments(ctx, storage.AdjustmentFilter{EntityIDs: []string{"E2"}})
		if len(scoped) != 0 {
			t.Errorf("entity scope leaked %d entries", len(scoped))
		}
	})

	t.Run("approval history is ordered", func(t *testing.T) {
		for _, action := range []models.ApprovalAction{models.ActionProposed, models.ActionApproved} {
			ev := &models.ApprovalEvent{AdjustmentID: adj.ID, Action: action, UserID: "u", Timestamp: created}
			if err := store.AppendApproval(ctx, ev); err != nil {
				t.Fatalf("AppendApproval failed: %v", err)
			}
		}
		events, err := store.ListApprovals(ctx, adj.ID)
		if err != nil {
			t.Fatalf("ListApprovals failed: %v", err)
		}
		if len(events) != 2 || events[0].Action != models.ActionProposed || events[1].Action != models.ActionApproved {
			t.Errorf("events = %+v", events)
		}
	})
}

func TestSQLiteStore_Settings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("PutToleranceRule upserts in place", func(t *testing.T) {
		for _, r := range []models.ToleranceRule{
			{ID: "global", Amount: dec("1")},
			{ID: "entity", EntityID: "E1", Amount: dec("5")},
			{ID: "global", Amount: dec("2")},
		} {
			if err := store.PutToleranceRule(ctx, r); err != nil {
				t.Fatalf("PutToleranceRule failed: %v", err)
			}
		}
		now := time.Now()
		if err := store.PutToleranceRule(ctx, models.ToleranceRule{ID: "retired", Amount: dec("9"), DeletedAt: &now}); err != nil {
			t.Fatalf("PutToleranceRule failed: %v", err)
		}

		rules, err := store.ListToleranceRules(ctx)
		if err != nil {
			t.Fatalf("ListToleranceRules failed: %v", err)
		}
		if len(rules) != 2 || rules[0].ID != "global" || !rules[0].Amount.Equal(dec("2")) || rules[1].ID != "entity" {
			t.Errorf("rules = %+v", rules)
		}
	})

	t.Run("periods", func(t *testing.T) {
		if _, err := store.GetPeriod(ctx, "2024_12"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		p := models.FiscalPeriod{ID: "2024_12", Code: "2024-12", FiscalYear: "2024", EndDate: "2024-12-31"}
		if err := store.PutPeriod(ctx, p); err != nil {
			t.Fatalf("PutPeriod failed: %v", err)
		}
		p.EndDate = "2024-12-30"
		if err := store.PutPeriod(ctx, p); err != nil {
			t.Fatalf("PutPeriod failed: %v", err)
		}
		got, err := store.GetPeriod(ctx, "2024_12")
		if err != nil || *got != p {
			t.Errorf("GetPeriod = %+v, %v", got, err)
		}
	})
}

func TestSQLiteStore_UsersAndAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("users keep role and entity scope", func(t *testing.T) {
		user := models.NewUser("maker@example.com", "Maker", "hash", models.RoleMaker, []string{"E1", "E2"})
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if err := store.CreateUser(ctx, models.NewUser("maker@example.com", "Dup", "hash", models.RoleMaker, nil)); err == nil {
			t.Error("expected duplicate email to fail")
		}

		got, err := store.GetUserByEmail(ctx, "maker@example.com")
		if err != nil || got == nil {
			t.Fatalf("GetUserByEmail = %v, %v", got, err)
		}
		if got.Role != models.RoleMaker || len(got.EntityIDs) != 2 || got.EntityIDs[1] != "E2" {
			t.Errorf("user = %+v", got)
		}

		admin := models.NewUser("admin@example.com", "Admin", "hash", models.RoleAdmin, nil)
		if err := store.CreateUser(ctx, admin); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		byID, err := store.GetUserByID(ctx, admin.ID)
		if err != nil || byID == nil || byID.EntityIDs != nil {
			t.Errorf("GetUserByID = %+v, %v", byID, err)
		}

		missing, err := store.GetUserByID(ctx, "nobody")
		if missing != nil || err != nil {
			t.Errorf("GetUserByID(nobody) = %v, %v; want nil, nil", missing, err)
		}
	})

	t.Run("audit entries by resource", func(t *testing.T) {
		for _, action := range []string{"COMPUTE", "DELETE"} {
			entry := &models.AuditEntry{UserID: "u1", Action: action, Resource: "reconciliation", ResourceID: "r1",
				Metadata: map[string]any{"version": 2}, Timestamp: time.Now()}
			if err := store.AppendAuditEntry(ctx, entry); err != nil {
				t.Fatalf("AppendAuditEntry failed: %v", err)
			}
		}
		entries, err := store.ListAuditEntries(ctx, "reconciliation", "r1")
		if err != nil {
			t.Fatalf("ListAuditEntries failed: %v", err)
		}
		if len(entries) != 2 || entries[0].Action != "COMPUTE" || entries[1].Action != "DELETE" {
			t.Fatalf("entries = %+v", entries)
		}
		// JSON numbers decode as float64.
		if v, ok := entries[0].Metadata["version"].(float64); !ok || v != 2 {
			t.Errorf("metadata = %v", entries[0].Metadata)
		}
	})
}

func TestSQLiteStore_EngineRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddWorkingLines(ctx, []models.WorkingLine{
		{ID: "w0", EntityID: "E1", FiscalYear: "2023", FiscalPeriod: "2023_12", PrepaidAccount: "1400", Additions: dec("1000")},
		{ID: "w1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", PrepaidAccount: "1400",
			OpeningBalance: dec("1000"), Additions: dec("500"), Amortization: decimal.NewNullDecimal(dec("300"))},
	}); err != nil {
		t.Fatalf("AddWorkingLines failed: %v", err)
	}
	if err := store.AddScheduleLines(ctx, []models.ScheduleLine{
		{ID: "s1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_06", Account: "1400", ApplyDate: "2024-06-30", CreditAmount: dec("300"), PrepaidStartYear: "2023"},
	}); err != nil {
		t.Fatalf("AddScheduleLines failed: %v", err)
	}
	if err := store.AddTrialBalanceLines(ctx, []models.TrialBalanceLine{
		{ID: "t1", EntityID: "E1", FiscalYear: "2024", FiscalPeriod: "2024_12", Account: "1400", ClosingBalance: dec("1150")},
	}); err != nil {
		t.Fatalf("AddTrialBalanceLines failed: %v", err)
	}

	engine := recon.NewEngine(store)
	wf := recon.NewWorkflow(engine)

	rec, err := engine.ComputeOne(ctx, models.LineKey{EntityID: "E1", PeriodID: "2024_12", FiscalYear: "2024", Account: "1400"})
	if err != nil {
		t.Fatalf("ComputeOne failed: %v", err)
	}
	if !rec.TotalSubsystem.Equal(dec("1200")) || !rec.Difference.Decimal.Equal(dec("50")) || rec.Status != models.StatusOpen {
		t.Fatalf("computed record = %+v", rec)
	}

	adj, err := wf.Propose(ctx, recon.Proposal{
		ReconciliationID: rec.ID,
		MakerID:          "maker-1",
		DebitAccount:     "1400",
		CreditAccount:    "6100",
		Amount:           decimal.NewNullDecimal(dec("50")),
		Explanation:      "missed accrual",
	})
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	decision, err := wf.Approve(ctx, adj.ID, "checker-1", "ok")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if decision.Reconciliation.Status != models.StatusClosed || !decision.Reconciliation.FinalDifference.Decimal.IsZero() {
		t.Errorf("after approval = %+v", decision.Reconciliation)
	}

	events, err := store.ListApprovals(ctx, adj.ID)
	if err != nil || len(events) != 2 {
		t.Errorf("approval history = %+v, %v", events, err)
	}
}
