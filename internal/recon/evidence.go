package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/calculator"
	"github.com/mmynk/prepaidrecon/internal/metrics"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Evidence is the derivation trail of one reconciliation record.
type Evidence struct {
	ReconciliationID string `json:"reconciliationId"`
	ReportDate       string `json:"reportDate"`

	// SourceTBRow is the trial balance line used, nil when none matched.
	SourceTBRow *TBEvidence `json:"sourceTbRow"`

	// WorkingValues is nil when no working line matched.
	WorkingValues *WorkingEvidence     `json:"pprecValues"`
	WorkingLines  []models.WorkingLine `json:"pprecLines"`

	// ScheduleLinesContributing are the schedule lines of the period.
	ScheduleLinesContributing []ScheduleLineEvidence `json:"scheduleLinesContributing"`

	// ScheduleByYear is keyed by booking year.
	ScheduleByYear map[string]YearEvidence `json:"scheduleByYear"`

	ApprovedAdjustments []AdjustmentImpact `json:"approvedAdjustments"`
	Warnings            []models.Warning   `json:"warnings"`

	Breakdown ClosingBreakdown `json:"expectedClosingBreakdown"`

	TotalSubsystem      decimal.Decimal             `json:"totalSubsystem"`
	SubsystemDivergence decimal.Decimal             `json:"subsystemDivergence"`
	GLBalance           decimal.NullDecimal         `json:"glBalance"`
	Difference          decimal.NullDecimal         `json:"difference"`
	ReconEntries        decimal.Decimal             `json:"reconEntries"`
	FinalDifference     decimal.NullDecimal         `json:"finalDifference"`
	Variance            decimal.NullDecimal         `json:"variance"`
	Status              models.ReconciliationStatus `json:"status"`
	ToleranceUsed       decimal.Decimal             `json:"toleranceUsed"`

	VarianceExplanation string `json:"varianceExplanation"`
}

// TBEvidence is the trial balance row behind the GL balance.
type TBEvidence struct {
	LineID               string                  `json:"lineId"`
	Account              string                  `json:"account"`
	ClosingBalanceSigned decimal.Decimal         `json:"closingBalanceSigned"`
	Raw                  models.TrialBalanceLine `json:"raw"`
}

// WorkingEvidence is the movement taken from the working line.
type WorkingEvidence struct {
	LineID         string          `json:"lineId"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Additions      decimal.Decimal `json:"additions"`
	Amortization   decimal.Decimal `json:"amortization"`
	Source         string          `json:"source"`
}

// ScheduleLineEvidence is the audit view of one schedule line.
type ScheduleLineEvidence struct {
	ID               string          `json:"id"`
	Account          string          `json:"account"`
	CreditAmount     decimal.Decimal `json:"creditAmount"`
	DebitAmount      decimal.Decimal `json:"debitAmount"`
	ApplyDate        string          `json:"applyDate"`
	HeaderDesc       string          `json:"headerDesc"`
	PrepaidStartYear string          `json:"prepaidStartYear"`
}

// YearEvidence is the begin-in-year derivation for one booking year.
type YearEvidence struct {
	OriginalBookedInYear       decimal.Decimal        `json:"originalBookedInYear"`
	AmortizationTillReportDate decimal.Decimal        `json:"amortizationTillReportDate"`
	BeginInYear                decimal.Decimal        `json:"beginInYearPrepaid"`
	ScheduleLines              []ScheduleLineEvidence `json:"scheduleLines"`
}

// AdjustmentImpact is an approved adjustment folded into reconEntries.
type AdjustmentImpact struct {
	ID              string          `json:"id"`
	DebitAccount    string          `json:"debitAccount"`
	CreditAccount   string          `json:"creditAccount"`
	Amount          decimal.Decimal `json:"amount"`
	ImpactOnPrepaid decimal.Decimal `json:"impactOnPrepaid"`
}

// ClosingBreakdown restates the movement figures of the record.
type ClosingBreakdown struct {
	OpeningBalance          decimal.Decimal `json:"openingBalance"`
	Additions               decimal.Decimal `json:"additions"`
	Amortization            decimal.Decimal `json:"amortization"`
	AmortizationSource      string          `json:"amortizationSource"`
	ExpectedClosing         decimal.Decimal `json:"expectedClosing"`
	ReconEntries            decimal.Decimal `json:"reconEntries"`
	ExpectedClosingAdjusted decimal.Decimal `json:"expectedClosingAdjusted"`
	TotalSubsystem          decimal.Decimal `json:"totalSubsystem"`
	Formula                 string          `json:"formula"`
}

const breakdownFormula = "Opening + Additions − Amortization ± Recon Entries = Total Subsystem"

// BuildEvidence re-resolves the lines behind a record and explains its
// figures. It never mutates state. Missing lines and unreadable line stores
// become warnings. Returns nil, nil when the record does not exist or is
// soft-deleted.
func (e *Engine) BuildEvidence(ctx context.Context, id string) (*Evidence, error) {
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

	key := models.LineKey{EntityID: rec.EntityID, PeriodID: rec.PeriodID, FiscalYear: rec.FiscalYear, Account: rec.PrepaidAccount}
	ev := &Evidence{
		ReconciliationID:    rec.ID,
		ScheduleByYear:      make(map[string]YearEvidence, len(calculator.BeginYears)),
		Warnings:            []models.Warning{},
		TotalSubsystem:      rec.TotalSubsystem,
		SubsystemDivergence: rec.SubsystemDivergence,
		GLBalance:           rec.GLBalance,
		Difference:          rec.Difference,
		ReconEntries:        rec.ReconEntries,
		FinalDifference:     rec.FinalDifference,
		Variance:            rec.Variance,
		Status:              rec.Status,
		ToleranceUsed:       rec.ToleranceUsed,
	}

	in, err := e.loadInputs(ctx, key)
	if err != nil {
		slog.Warn("Evidence built without source lines", "id", rec.ID, "error", err)
		ev.warn(models.WarnLinesUnavailable, "Source lines could not be loaded; evidence is partial.", err.Error())
		in = calculator.Inputs{Key: key}
		in.ReportDate, _ = e.reportDate(ctx, key.PeriodID, key.FiscalYear)
	}
	in.ReconEntries = rec.ReconEntries
	in.Tolerance = rec.ToleranceUsed
	res := calculator.Compute(in)
	ev.ReportDate = in.ReportDate

	if res.TrialBalanceLine != nil {
		tb := *res.TrialBalanceLine
		ev.SourceTBRow = &TBEvidence{LineID: tb.ID, Account: tb.Account, ClosingBalanceSigned: tb.ClosingBalance, Raw: tb}
	} else {
		ev.warn(models.WarnMissingTBRow, "No Trial Balance row found for this account and period.")
	}

	ev.WorkingLines = []models.WorkingLine{}
	if wl := res.WorkingLine; wl != nil {
		ev.WorkingValues = &WorkingEvidence{
			LineID:         wl.ID,
			OpeningBalance: res.Opening,
			Additions:      res.Additions,
			Amortization:   res.Amortization,
			Source:         res.AmortizationSource,
		}
		ev.WorkingLines = append(ev.WorkingLines, *wl)
	}

	ev.ScheduleLinesContributing = scheduleEvidence(res.ScheduleLines)
	if res.AmortizationSource == calculator.SourceSchedule && len(res.ScheduleLines) == 0 {
		ev.warn(models.WarnMissingScheduleAmortization, "No schedule lines found for amortization; PPREC amortization not present.")
	}
	if dups := duplicateIDs(res.ScheduleLines); len(dups) > 0 {
		ev.warn(models.WarnDuplicateScheduleLines, "Duplicate schedule line references detected.", dups...)
	}
	if !rec.SubsystemDivergence.IsZero() {
		ev.warn(models.WarnSubsystemDivergence,
			fmt.Sprintf("Total Subsystem (%s) differs from Expected Closing (%s) by %s.",
				rec.TotalSubsystem, rec.ExpectedClosing, rec.SubsystemDivergence))
	}

	for _, y := range res.Years {
		begin := y.BeginInYear
		if stored, ok := rec.BeginInYear[y.Year]; ok {
			begin = stored
		}
		ev.ScheduleByYear[y.Year] = YearEvidence{
			OriginalBookedInYear:       y.OriginalBooked,
			AmortizationTillReportDate: y.AmortizationToDate,
			BeginInYear:                begin,
			ScheduleLines:              scheduleEvidence(y.ScheduleLines),
		}
	}

	ev.ApprovedAdjustments = []AdjustmentImpact{}
	approved, err := e.store.ListAdjustments(ctx, storage.AdjustmentFilter{ReconciliationID: rec.ID, Status: models.AdjustmentApproved})
	if err != nil {
		slog.Warn("Evidence built without adjustments", "id", rec.ID, "error", err)
		ev.warn(models.WarnAdjustmentsUnavailable, "Approved adjustments could not be loaded; reconEntries is shown as stored.", err.Error())
	}
	for _, a := range approved {
		ev.ApprovedAdjustments = append(ev.ApprovedAdjustments, AdjustmentImpact{
			ID:              a.ID,
			DebitAccount:    a.DebitAccount,
			CreditAccount:   a.CreditAccount,
			Amount:          a.Amount,
			ImpactOnPrepaid: a.ImpactOnPrepaid,
		})
	}

	ev.Breakdown = ClosingBreakdown{
		OpeningBalance:          rec.OpeningBalance,
		Additions:               rec.Additions,
		Amortization:            rec.Amortization,
		AmortizationSource:      res.AmortizationSource,
		ExpectedClosing:         rec.ExpectedClosing,
		ReconEntries:            rec.ReconEntries,
		ExpectedClosingAdjusted: rec.ExpectedClosingAdjusted,
		TotalSubsystem:          rec.TotalSubsystem,
		Formula:                 breakdownFormula,
	}
	ev.VarianceExplanation = VarianceNarrative(rec)

	for _, w := range ev.Warnings {
		metrics.Warnings.WithLabelValues(w.Code).Inc()
	}
	return ev, nil
}

// VarianceNarrative renders the human-readable variance sentence for rec.
func VarianceNarrative(rec *models.Reconciliation) string {
	if !rec.GLBalance.Valid || !rec.Difference.Valid {
		return "GL Balance not available; cannot compute variance."
	}
	return fmt.Sprintf(
		"Total Subsystem (%s) − GL Balance (%s) = Difference (%s). After Recon Entries (%s): Final Difference = %s. Status: %s (tolerance %s).",
		rec.TotalSubsystem, rec.GLBalance.Decimal, rec.Difference.Decimal,
		rec.ReconEntries, rec.FinalDifference.Decimal, rec.Status, rec.ToleranceUsed,
	)
}

func (ev *Evidence) warn(code, message string, detail ...string) {
	ev.Warnings = append(ev.Warnings, models.Warning{Code: code, Message: message, Detail: detail})
}

func scheduleEvidence(lines []models.ScheduleLine) []ScheduleLineEvidence {
	out := make([]ScheduleLineEvidence, 0, len(lines))
	for _, l := range lines {
		out = append(out, ScheduleLineEvidence{
			ID:               l.ID,
			Account:          l.Account,
			CreditAmount:     l.CreditAmount,
			DebitAmount:      l.DebitAmount,
			ApplyDate:        l.ApplyDate,
			HeaderDesc:       l.Description,
			PrepaidStartYear: l.StartYear(),
		})
	}
	return out
}

// duplicateIDs returns each line ID seen more than once, in first-repeat order.
func duplicateIDs(lines []models.ScheduleLine) []string {
	seen := make(map[string]int, len(lines))
	var dups []string
	for _, l := range lines {
		seen[l.ID]++
		if seen[l.ID] == 2 {
			dups = append(dups, l.ID)
		}
	}
	return dups
}
