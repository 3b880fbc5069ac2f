package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage/memory"
)

// workbook builds an in-memory xlsx with rows written to sheet.
func workbook(t *testing.T, sheet string, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet failed: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		" Fiscal Year ":    "fiscal_year",
		"Closing\tBalance":  "closing_balance",
		"PREPAID  ACCOUNT": "prepaid_account",
		"credit_amount":    "credit_amount",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1,250.50", "1250.5", false},
		{"(300)", "-300", false},
		{"$ 12", "12", false},
		{"-0.01", "-0.01", false},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected an error, got %s", got)
				}
				return
			}
			if err != nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestReadSheet(t *testing.T) {
	r := workbook(t, "Schedule", [][]any{
		{"Company", "Fiscal Year", "Period", "GL Account", "Apply Date", "Credit", "Prepaid Start Year", "Description"},
		{"E1", "2024", "2024_06", "1400", "2024-06-30", "300", "2023", "Insurance"},
		{"", "", "", "", "", "", "", ""},
		{" E1 ", "2024", "", "1400", "", "25", "", ""},
	})

	rows, err := ReadSheet(r, "Schedule")
	if err != nil {
		t.Fatalf("ReadSheet failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank row skipped)", len(rows))
	}
	if rows[0]["gl_account"] != "1400" || rows[0]["prepaid_start_year"] != "2023" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["company"] != "E1" {
		t.Errorf("cells are trimmed, got %q", rows[1]["company"])
	}

	if _, err := ReadSheet(workbook(t, "Sheet1", nil), "Missing"); err == nil {
		t.Error("expected an error for a missing sheet")
	}
}

func TestScheduleLines_AliasesAndDefaults(t *testing.T) {
	rows := []Row{
		{"company": "E1", "year": "2024", "gl_account": "1400", "posting_date": "06/30/2024", "credit": "300", "start_year": "2023"},
		{"fiscal_period": "2024_12", "account": "1500", "debit_amount": "4", "credit_amount": ""},
	}
	lines, err := ScheduleLines(rows, Batch{UploadID: "u1", EntityID: "E9", PeriodID: "2024_06"})
	if err != nil {
		t.Fatalf("ScheduleLines failed: %v", err)
	}

	first := lines[0]
	if first.EntityID != "E1" || first.FiscalPeriod != "2024_06" || first.Account != "1400" || first.UploadID != "u1" {
		t.Errorf("first = %+v", first)
	}
	if first.ApplyDate != "2024-06-30" || first.StartYear() != "2023" || !first.CreditAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("first = %+v", first)
	}

	second := lines[1]
	if second.EntityID != "E9" || second.FiscalPeriod != "2024_12" || !second.CreditAmount.IsZero() || !second.DebitAmount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("second = %+v", second)
	}

	if _, err := ScheduleLines([]Row{{"credit": "lots"}}, Batch{}); err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Errorf("expected a row-numbered error, got %v", err)
	}
}

func TestTrialBalanceLines_DebitMinusCredit(t *testing.T) {
	rows := []Row{
		{"entity": "E1", "account": "1400", "closing_balance": "1,150"},
		{"entity": "E1", "account": "1500", "debit": "10", "credit": "35"},
	}
	lines, err := TrialBalanceLines(rows, Batch{})
	if err != nil {
		t.Fatalf("TrialBalanceLines failed: %v", err)
	}
	if !lines[0].ClosingBalance.Equal(decimal.NewFromInt(1150)) {
		t.Errorf("closing = %s", lines[0].ClosingBalance)
	}
	if !lines[1].ClosingBalance.Equal(decimal.NewFromInt(-25)) {
		t.Errorf("debit-credit closing = %s", lines[1].ClosingBalance)
	}
}

func TestWorkingLines_BlankAmortizationStaysNull(t *testing.T) {
	rows := []Row{
		{"entity": "E1", "prepaid_account": "1400", "opening": "1000", "new_prepayments": "500"},
		{"entity": "E1", "account": "1500", "amort": "0"},
	}
	lines, err := WorkingLines(rows, Batch{})
	if err != nil {
		t.Fatalf("WorkingLines failed: %v", err)
	}
	if lines[0].Amortization.Valid || !lines[0].Additions.Equal(decimal.NewFromInt(500)) {
		t.Errorf("first = %+v", lines[0])
	}
	if lines[1].PrepaidAccount != "1500" || !lines[1].Amortization.Valid {
		t.Errorf("explicit zero amortization must be kept: %+v", lines[1])
	}
}

func TestImporter_ImportSheet(t *testing.T) {
	store := memory.New()
	im := NewImporter(store)
	ctx := context.Background()

	r := workbook(t, "Sheet1", [][]any{
		{"Entity", "Fiscal Year", "Fiscal Period", "Account", "Closing Balance"},
		{"E1", "2024", "2024_12", "1400", "1150"},
		{"E1", "2024", "2024_12", "1600", "0"},
	})
	res, err := im.ImportSheet(ctx, KindTrialBalance, r, "", Batch{})
	if err != nil {
		t.Fatalf("ImportSheet failed: %v", err)
	}
	if res.Lines != 2 || res.UploadID == "" {
		t.Errorf("result = %+v", res)
	}

	lines, err := store.TrialBalanceLines(ctx, models.LineKey{EntityID: "E1", Account: "1400"})
	if err != nil || len(lines) != 1 || lines[0].UploadID != res.UploadID {
		t.Errorf("stored lines = %+v, %v", lines, err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"schedule", KindSchedule},
		{"Trial Balance", KindTrialBalance},
		{"PPREC", KindWorking},
	}
	for _, tt := range tests {
		if got, err := ParseKind(tt.in); err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := ParseKind("ledger"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestImporter_ImportLines(t *testing.T) {
	store := memory.New()
	im := NewImporter(store)
	ctx := context.Background()

	res, err := im.ImportLines(ctx, KindWorking, Lines{
		Working: []models.WorkingLine{
			{PrepaidAccount: "1400", FiscalYear: "2024", OpeningBalance: decimal.NewFromInt(10)},
			{EntityID: "E2", FiscalPeriod: "P9", PrepaidAccount: "1400"},
		},
		Schedule: []models.ScheduleLine{{Account: "1400"}},
	}, Batch{UploadID: "u7", EntityID: "E1", PeriodID: "P1"})
	if err != nil {
		t.Fatalf("ImportLines failed: %v", err)
	}
	if res.Lines != 2 || res.UploadID != "u7" {
		t.Errorf("result = %+v", res)
	}

	defaulted, _ := store.WorkingLines(ctx, models.LineKey{EntityID: "E1", PeriodID: "P1"})
	if len(defaulted) != 1 || defaulted[0].UploadID != "u7" {
		t.Errorf("defaulted lines = %+v", defaulted)
	}
	kept, _ := store.WorkingLines(ctx, models.LineKey{EntityID: "E2", PeriodID: "P9"})
	if len(kept) != 1 {
		t.Errorf("explicit keys must be kept, got %+v", kept)
	}
	if sched, _ := store.ScheduleLines(ctx, models.LineKey{EntityID: "E1"}); len(sched) != 0 {
		t.Errorf("lines of another kind were stored: %+v", sched)
	}
}

func TestImporter_MalformedInput(t *testing.T) {
	im := NewImporter(memory.New())
	ctx := context.Background()

	_, err := im.ImportSheet(ctx, KindSchedule, bytes.NewReader([]byte("not a workbook")), "", Batch{})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("garbage workbook: expected ErrMalformed, got %v", err)
	}
	_, err = im.ImportRows(ctx, KindTrialBalance, []Row{{"closing_balance": "abc"}}, Batch{})
	if !errors.Is(err, ErrMalformed) || !strings.Contains(err.Error(), "row 2") {
		t.Errorf("bad amount: expected ErrMalformed on row 2, got %v", err)
	}
}
