package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/calculator"
	"github.com/mmynk/prepaidrecon/internal/models"
)

// ErrMalformed marks source rows or workbooks that cannot be read as lines.
var ErrMalformed = errors.New("malformed source")

// Header aliases per canonical field.
var (
	entityKeys       = []string{"entity", "company", "entity_id", "company_id"}
	fiscalYearKeys   = []string{"fiscal_year", "fiscalyear", "year"}
	fiscalPeriodKeys = []string{"fiscal_period", "fiscalperiod", "period", "period_id"}
	accountKeys      = []string{"account", "account_code", "accountcode", "gl_account"}

	applyDateKeys      = []string{"apply_date", "applydate", "posting_date", "date"}
	headerDescKeys     = []string{"header_desc", "headerdesc", "description", "header"}
	expenseAccountKeys = []string{"expense_account", "expenseaccount", "expense_account_code"}
	accountDescKeys    = []string{"account_desc", "accountdesc", "account_description"}
	startYearKeys      = []string{"prepaid_start_year", "prepaidstartyear", "start_year"}
	debitKeys          = []string{"debit_amount", "debitamount", "debit"}
	creditKeys         = []string{"credit_amount", "creditamount", "credit"}

	closingKeys = []string{"closing_balance_signed", "closingbalancesigned", "closing_balance", "closingbalance", "balance", "net"}

	prepaidAccountKeys = []string{"prepaid_account", "prepaidaccount", "account", "account_code"}
	openingKeys        = []string{"opening_balance", "openingbalance", "opening"}
	additionsKeys      = []string{"additions", "new_prepayments", "newprepayments", "additions_amount"}
	amortizationKeys   = []string{"amortization", "amort", "amortization_amount"}
)

// Batch carries upload-level defaults applied to rows that leave a key blank.
type Batch struct {
	UploadID string
	EntityID string
	PeriodID string
}

// fill returns entity and period, replacing blanks with the batch defaults.
func (b Batch) fill(entity, period string) (string, string) {
	if strings.TrimSpace(entity) == "" {
		entity = b.EntityID
	}
	if strings.TrimSpace(period) == "" {
		period = b.PeriodID
	}
	return entity, period
}

func (b Batch) entity(r Row) string {
	if v := r.pick(entityKeys...); v != "" {
		return v
	}
	return b.EntityID
}

func (b Batch) period(r Row) string {
	if v := r.pick(fiscalPeriodKeys...); v != "" {
		return v
	}
	return b.PeriodID
}

// ScheduleLines converts rows into schedule lines.
func ScheduleLines(rows []Row, b Batch) ([]models.ScheduleLine, error) {
	lines := make([]models.ScheduleLine, 0, len(rows))
	for i, r := range rows {
		debit, err := amountOrZero(r, debitKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		credit, err := amountOrZero(r, creditKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		applyDate := r.pick(applyDateKeys...)
		if iso, ok := calculator.ParseDate(applyDate); ok {
			applyDate = iso
		}
		lines = append(lines, models.ScheduleLine{
			UploadID:         b.UploadID,
			EntityID:         b.entity(r),
			FiscalYear:       r.pick(fiscalYearKeys...),
			FiscalPeriod:     b.period(r),
			ApplyDate:        applyDate,
			Account:          r.pick(accountKeys...),
			ExpenseAccount:   r.pick(expenseAccountKeys...),
			DebitAmount:      debit,
			CreditAmount:     credit,
			PrepaidStartYear: r.pick(startYearKeys...),
			Description:      r.pick(headerDescKeys...),
		})
	}
	return lines, nil
}

// TrialBalanceLines converts rows into trial balance lines. Without a
// closing balance column the balance is debit minus credit.
func TrialBalanceLines(rows []Row, b Batch) ([]models.TrialBalanceLine, error) {
	lines := make([]models.TrialBalanceLine, 0, len(rows))
	for i, r := range rows {
		closing, err := amount(r, closingKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		if !closing.Valid {
			debit, err := amountOrZero(r, []string{"debit", "debit_amount"})
			if err != nil {
				return nil, rowError(i, err)
			}
			credit, err := amountOrZero(r, []string{"credit", "credit_amount"})
			if err != nil {
				return nil, rowError(i, err)
			}
			closing = decimal.NewNullDecimal(debit.Sub(credit))
		}
		lines = append(lines, models.TrialBalanceLine{
			UploadID:       b.UploadID,
			EntityID:       b.entity(r),
			FiscalYear:     r.pick(fiscalYearKeys...),
			FiscalPeriod:   b.period(r),
			Account:        r.pick(accountKeys...),
			AccountDesc:    r.pick(accountDescKeys...),
			ClosingBalance: closing.Decimal,
		})
	}
	return lines, nil
}

// WorkingLines converts rows into PPREC working lines. A blank amortization
// cell stays null so the engine falls back to the schedule.
func WorkingLines(rows []Row, b Batch) ([]models.WorkingLine, error) {
	lines := make([]models.WorkingLine, 0, len(rows))
	for i, r := range rows {
		opening, err := amountOrZero(r, openingKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		additions, err := amountOrZero(r, additionsKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		amortization, err := amount(r, amortizationKeys)
		if err != nil {
			return nil, rowError(i, err)
		}
		lines = append(lines, models.WorkingLine{
			UploadID:       b.UploadID,
			EntityID:       b.entity(r),
			FiscalYear:     r.pick(fiscalYearKeys...),
			FiscalPeriod:   b.period(r),
			PrepaidAccount: r.pick(prepaidAccountKeys...),
			OpeningBalance: opening,
			Additions:      additions,
			Amortization:   amortization,
		})
	}
	return lines, nil
}

// ParseAmount parses a spreadsheet number. Thousands separators, a leading
// currency symbol and accounting parentheses for negatives are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.TrimLeft(v, "$€£¥ ")
	v = strings.ReplaceAll(v, ",", "")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func amount(r Row, keys []string) (decimal.NullDecimal, error) {
	v := r.pick(keys...)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func amountOrZero(r Row, keys []string) (decimal.Decimal, error) {
	v, err := amount(r, keys)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Decimal, nil
}

// rowError numbers rows as a spreadsheet user sees them (header is row 1).
func rowError(i int, err error) error {
	return fmt.Errorf("%w: row %d: %v", ErrMalformed, i+2, err)
}
