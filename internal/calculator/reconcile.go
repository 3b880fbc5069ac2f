// Package calculator holds the pure reconciliation formulas. Nothing here
// touches storage; callers load the candidate lines and hand them in.
package calculator

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/matcher"
	"github.com/mmynk/prepaidrecon/internal/models"
)

// BeginYears are the booking years reported as begin-in-year balances.
var BeginYears = []string{"2021", "2022", "2023", "2024", "2025"}

// Amortization sources.
const (
	SourceWorking  = "PPREC"
	SourceSchedule = "SCHEDULE"
)

// Inputs is everything Compute needs for one (entity, period, account).
type Inputs struct {
	// Key names the entity, period, optional fiscal year and prepaid account.
	Key models.LineKey

	// ReportDate is YYYY-MM-DD; empty disables the apply-date cut-off.
	ReportDate string

	// WorkingLines and ScheduleLines are every line of the entity and
	// account, across all periods. Per-period and per-year selection
	// happens here.
	WorkingLines  []models.WorkingLine
	ScheduleLines []models.ScheduleLine

	// TrialBalanceLines are the candidate TB rows; the first matching one wins.
	TrialBalanceLines []models.TrialBalanceLine

	Tolerance    decimal.Decimal
	ReconEntries decimal.Decimal
}

// Movement is the opening/additions/amortization view of one period.
type Movement struct {
	Opening         decimal.Decimal
	Additions       decimal.Decimal
	Amortization    decimal.Decimal
	ExpectedClosing decimal.Decimal

	// AmortizationSource is SourceWorking when the working line carried an
	// amortization figure, SourceSchedule otherwise.
	AmortizationSource string

	// WorkingLine is the matched PPREC row, nil when none matched.
	WorkingLine *models.WorkingLine

	// ScheduleLines are the schedule rows of the period for the account.
	ScheduleLines []models.ScheduleLine
}

// YearBalance is the begin-in-year derivation for one booking year.
type YearBalance struct {
	Year               string
	OriginalBooked     decimal.Decimal
	AmortizationToDate decimal.Decimal
	BeginInYear        decimal.Decimal
	ScheduleLines      []models.ScheduleLine
}

// Result is the full derivation for one (entity, period, account).
type Result struct {
	Movement

	Years          []YearBalance
	TotalSubsystem decimal.Decimal

	// Divergence is ExpectedClosing - TotalSubsystem.
	Divergence decimal.Decimal

	TrialBalanceLine *models.TrialBalanceLine
	GLBalance        decimal.NullDecimal
	Difference       decimal.NullDecimal

	ReconEntries    decimal.Decimal
	FinalDifference decimal.NullDecimal

	ExpectedClosingAdjusted decimal.Decimal
	Variance                decimal.NullDecimal

	Tolerance decimal.Decimal
	Status    models.ReconciliationStatus
}

// Compute derives every reconciliation figure for in.Key.
//
// Algorithm:
//   - Movement: opening and additions from the matching working line; its
//     amortization when present, else the sum of schedule credit amounts
//   - ExpectedClosing = Opening + Additions - Amortization
//   - BeginInYear(Y) = Σ working additions booked in Y - Σ schedule credits
//     with start year Y applied on or before the report date
//   - TotalSubsystem = Σ BeginInYear
//   - Difference = TotalSubsystem - GLBalance (null without a TB row)
//   - FinalDifference = Difference - ReconEntries
//   - Status = CLOSED iff |FinalDifference| <= Tolerance
func Compute(in Inputs) Result {
	key := in.Key.Normalize()
	res := Result{
		Movement:     ResolveMovement(in.WorkingLines, in.ScheduleLines, key),
		ReconEntries: in.ReconEntries,
		Tolerance:    in.Tolerance,
	}

	res.Years = make([]YearBalance, 0, len(BeginYears))
	for _, y := range BeginYears {
		original := OriginalBookedInYear(in.WorkingLines, key.EntityID, key.Account, y)
		amort, lines := AmortizationTillReportDate(in.ScheduleLines, key.EntityID, key.Account, y, in.ReportDate)
		begin := original.Sub(amort)
		res.Years = append(res.Years, YearBalance{
			Year:               y,
			OriginalBooked:     original,
			AmortizationToDate: amort,
			BeginInYear:        begin,
			ScheduleLines:      lines,
		})
		res.TotalSubsystem = res.TotalSubsystem.Add(begin)
	}
	res.Divergence = res.ExpectedClosing.Sub(res.TotalSubsystem)

	if tb, ok := matcher.First(in.TrialBalanceLines, key); ok {
		res.TrialBalanceLine = &tb
		res.GLBalance = decimal.NewNullDecimal(tb.ClosingBalance)
	}

	res.Difference = subNull(res.TotalSubsystem, res.GLBalance)
	res.FinalDifference = minus(res.Difference, res.ReconEntries)
	res.ExpectedClosingAdjusted = res.TotalSubsystem.Add(res.ReconEntries)
	if res.GLBalance.Valid {
		res.Variance = decimal.NewNullDecimal(res.GLBalance.Decimal.Sub(res.ExpectedClosingAdjusted))
	}
	res.Status = ClosingStatus(res.FinalDifference, res.Tolerance)
	return res
}

// ResolveMovement picks the opening, additions and amortization for the
// period named by key. Without a working line opening and additions are zero.
func ResolveMovement(working []models.WorkingLine, schedule []models.ScheduleLine, key models.LineKey) Movement {
	m := Movement{
		ScheduleLines:      matcher.Filter(schedule, key),
		AmortizationSource: SourceSchedule,
	}
	scheduled := SumCredits(m.ScheduleLines)

	if wl, ok := matcher.First(working, key); ok {
		m.WorkingLine = &wl
		m.Opening = wl.OpeningBalance
		m.Additions = wl.Additions
		if wl.Amortization.Valid {
			m.Amortization = wl.Amortization.Decimal
			m.AmortizationSource = SourceWorking
		} else {
			m.Amortization = scheduled
		}
	} else {
		m.Amortization = scheduled
	}

	m.ExpectedClosing = m.Opening.Add(m.Additions).Sub(m.Amortization)
	return m
}

// OriginalBookedInYear sums working-line additions booked in year for the
// entity and account, across every period of that year.
func OriginalBookedInYear(working []models.WorkingLine, entityID, account, year string) decimal.Decimal {
	entityID, account, year = strings.TrimSpace(entityID), strings.TrimSpace(account), strings.TrimSpace(year)
	total := decimal.Zero
	for _, l := range working {
		k := l.LineKey()
		if k.EntityID != entityID || k.Account != account || k.FiscalYear != year {
			continue
		}
		total = total.Add(l.Additions)
	}
	return total
}

// AmortizationTillReportDate sums schedule credit amounts whose prepaid
// start year is year and whose apply date is on or before reportDate. Lines
// with an unparseable apply date, or any line when reportDate is empty, are
// included.
func AmortizationTillReportDate(schedule []models.ScheduleLine, entityID, account, year, reportDate string) (decimal.Decimal, []models.ScheduleLine) {
	entityID, account, year = strings.TrimSpace(entityID), strings.TrimSpace(account), strings.TrimSpace(year)
	report, hasReport := ParseDate(reportDate)

	total := decimal.Zero
	var lines []models.ScheduleLine
	for _, l := range schedule {
		k := l.LineKey()
		if k.EntityID != entityID || k.Account != account || l.StartYear() != year {
			continue
		}
		if hasReport {
			if applied, ok := ComparableDate(l.ApplyDate); ok && applied > report {
				continue
			}
		}
		total = total.Add(l.CreditAmount)
		lines = append(lines, l)
	}
	return total, lines
}

// SumCredits sums the credit amounts of lines.
func SumCredits(lines []models.ScheduleLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.CreditAmount)
	}
	return total
}

// ClosingStatus is CLOSED when finalDifference is known and within
// tolerance, OPEN otherwise.
func ClosingStatus(finalDifference decimal.NullDecimal, tolerance decimal.Decimal) models.ReconciliationStatus {
	if finalDifference.Valid && finalDifference.Decimal.Abs().LessThanOrEqual(tolerance) {
		return models.StatusClosed
	}
	return models.StatusOpen
}

// Apply folds a Result into a record. With existing nil a new version 1
// record is built under id; otherwise id and CreatedAt are kept and the
// version is bumped. existing is never mutated.
func Apply(existing *models.Reconciliation, id string, key models.LineKey, res Result, now time.Time) *models.Reconciliation {
	key = key.Normalize()
	rec := &models.Reconciliation{
		ID:                      id,
		EntityID:                key.EntityID,
		FiscalYear:              key.FiscalYear,
		PeriodID:                key.PeriodID,
		PrepaidAccount:          key.Account,
		OpeningBalance:          res.Opening,
		Additions:               res.Additions,
		Amortization:            res.Amortization,
		ExpectedClosing:         res.ExpectedClosing,
		BeginInYear:             make(map[string]decimal.Decimal, len(res.Years)),
		TotalSubsystem:          res.TotalSubsystem,
		SubsystemDivergence:     res.Divergence,
		GLBalance:               res.GLBalance,
		Difference:              res.Difference,
		ReconEntries:            res.ReconEntries,
		FinalDifference:         res.FinalDifference,
		ExpectedClosingAdjusted: res.ExpectedClosingAdjusted,
		Variance:                res.Variance,
		ToleranceUsed:           res.Tolerance,
		Status:                  res.Status,
		Version:                 1,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	for _, y := range res.Years {
		rec.BeginInYear[y.Year] = y.BeginInYear
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.Version = existing.Version + 1
	}
	return rec
}

// ResolveTolerance returns the amount of the most specific rule matching
// (entityID, periodID). Ties keep the earlier rule. No rule means zero.
func ResolveTolerance(rules []models.ToleranceRule, entityID, periodID string) decimal.Decimal {
	entityID, periodID = strings.TrimSpace(entityID), strings.TrimSpace(periodID)
	best := -1
	amount := decimal.Zero
	for _, r := range rules {
		if r.DeletedAt != nil {
			continue
		}
		re, rp := strings.TrimSpace(r.EntityID), strings.TrimSpace(r.PeriodID)
		if re != "" && re != entityID {
			continue
		}
		if rp != "" && rp != periodID {
			continue
		}
		if s := r.Specificity(); s > best {
			best = s
			amount = r.Amount
		}
	}
	return amount
}

func subNull(a decimal.Decimal, b decimal.NullDecimal) decimal.NullDecimal {
	if !b.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Sub(b.Decimal))
}

func minus(a decimal.NullDecimal, b decimal.Decimal) decimal.NullDecimal {
	if !a.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal.Sub(b))
}
